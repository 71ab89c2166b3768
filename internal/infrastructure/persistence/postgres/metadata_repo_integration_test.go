//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
)

func startPostgres(t *testing.T) *MetadataRepository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("dataflux"),
		tcpostgres.WithUsername("dataflux"),
		tcpostgres.WithPassword("dataflux"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := Open(dsn, &config.PostgresConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := NewMetadataRepository(client)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func seedAsset(t *testing.T, repo *MetadataRepository, id, filename, mime string, tags []string, created time.Time) {
	t.Helper()
	a := entity.NewAsset(id, filename, mime, 100)
	a.Tags = tags
	a.CollectionID = "col-1"
	a.CreatedAt = created
	a.UpdatedAt = created
	require.NoError(t, repo.UpsertAsset(context.Background(), a))
}

func TestMetadataRepositorySearchAssets(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seedAsset(t, repo, "A1", "sunset_beach.jpg", "image/jpeg", []string{"beach"}, base)
	seedAsset(t, repo, "A2", "city.mp4", "video/mp4", []string{"sunset"}, base.Add(time.Hour))
	seedAsset(t, repo, "A3", "forest.png", "image/png", nil, base.Add(2*time.Hour))

	got, err := repo.SearchAssets(ctx, repository.MetadataFilter{Query: "Sunset", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A2", got[0].AssetID, "created_at desc")
	assert.Equal(t, "A1", got[1].AssetID)

	got, err = repo.SearchAssets(ctx, repository.MetadataFilter{MediaTypes: []string{"image"}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.SearchAssets(ctx, repository.MetadataFilter{Tags: []string{"beach"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"beach"}, got[0].Tags)
}

func TestMetadataRepositoryGetAndCount(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	seedAsset(t, repo, "A1", "a.jpg", "image/jpeg", nil, time.Now().UTC())
	seg := entity.NewSegment("S1", "A1", 1)
	seg.DetectedObjects = []string{"cat"}
	require.NoError(t, repo.UpsertSegment(ctx, seg))

	a, err := repo.GetAsset(ctx, "A1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "a.jpg", a.Filename)

	missing, err := repo.GetAsset(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	s, err := repo.GetSegment(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, s.DetectedObjects)

	n, err := repo.CountSegments(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.DeleteAsset(ctx, "A1"))
	n, err = repo.CountAssets(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
