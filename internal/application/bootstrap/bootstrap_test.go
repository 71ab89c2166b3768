package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	types    []string
	payloads []string
	failAt   int
}

func (p *capturePublisher) PublishEvent(_ context.Context, eventType string, payload any) (string, error) {
	if p.failAt > 0 && len(p.types)+1 == p.failAt {
		return "", errors.New("stream unavailable")
	}
	raw, _ := payload.(json.RawMessage)
	p.types = append(p.types, eventType)
	p.payloads = append(p.payloads, string(raw))
	return "1-0", nil
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	var ran []string
	r := NewRunner(Step{Name: "postgres", Run: func(context.Context) error {
		ran = append(ran, "postgres")
		return nil
	}})
	r.Add("neo4j", func(context.Context) error {
		ran = append(ran, "neo4j")
		return errors.New("constraint failed")
	})
	r.Add("weaviate", func(context.Context) error {
		ran = append(ran, "weaviate")
		return nil
	})

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neo4j")
	assert.Equal(t, []string{"postgres", "neo4j"}, ran)
}

func TestSeedPublishesEachLine(t *testing.T) {
	input := `
# demo data
{"type":"asset.indexed","payload":{"asset_id":"A1","filename":"a.jpg"}}

{"type":"similarity.computed","payload":{"source_asset_id":"A1","target_asset_id":"A2","similarity_score":0.9}}
`
	pub := &capturePublisher{}
	n, err := Seed(context.Background(), strings.NewReader(input), pub)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"asset.indexed", "similarity.computed"}, pub.types)
	assert.JSONEq(t, `{"asset_id":"A1","filename":"a.jpg"}`, pub.payloads[0])
}

func TestSeedValidatesBeforePublishing(t *testing.T) {
	input := `{"type":"asset.indexed","payload":{"asset_id":"A1"}}
{"type":"asset.renamed","payload":{}}`
	pub := &capturePublisher{}
	_, err := Seed(context.Background(), strings.NewReader(input), pub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Empty(t, pub.types)
}

func TestSeedReportsPartialPublish(t *testing.T) {
	input := `{"type":"asset.indexed","payload":{"asset_id":"A1"}}
{"type":"asset.indexed","payload":{"asset_id":"A2"}}`
	pub := &capturePublisher{failAt: 2}
	n, err := Seed(context.Background(), strings.NewReader(input), pub)
	require.Error(t, err)
	assert.Equal(t, 1, n)
}
