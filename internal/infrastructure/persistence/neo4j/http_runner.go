package neo4j

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"dataflux-query-api/internal/config"
	apperrors "dataflux-query-api/pkg/errors"
)

const commitPath = "/db/data/transaction/commit"

type txStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters"`
}

type txRequest struct {
	Statements []txStatement `json:"statements"`
}

type txResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []any `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// HTTPRunner 通过事务提交端点执行 Cypher（Basic Auth）
type HTTPRunner struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewHTTPRunner 创建 HTTP 传输
func NewHTTPRunner(cfg *config.GraphConfig) *HTTPRunner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRunner{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Run 执行单条语句
func (r *HTTPRunner) Run(ctx context.Context, stmt Statement) (*Result, error) {
	params := stmt.Params
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(txRequest{
		Statements: []txStatement{{Statement: stmt.Cypher, Parameters: params}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+commitPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(r.username, r.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.BackendUnavailable(backendName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("transaction commit: unexpected status %d", resp.StatusCode))
	}

	var out txResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to decode response: %w", err))
	}

	if len(out.Errors) > 0 {
		return nil, apperrors.GraphQuery(out.Errors[0].Code, out.Errors[0].Message)
	}

	res := &Result{}
	if len(out.Results) > 0 {
		res.Columns = out.Results[0].Columns
		res.Rows = make([][]any, 0, len(out.Results[0].Data))
		for _, d := range out.Results[0].Data {
			res.Rows = append(res.Rows, d.Row)
		}
	}
	return res, nil
}

// Ping GET /db/data/ 返回 200 即可用
func (r *HTTPRunner) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/db/data/", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.username, r.password)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperrors.BackendUnavailable(backendName, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperrors.BackendUnavailable(backendName, fmt.Errorf("ping: unexpected status %d", resp.StatusCode))
	}
	return nil
}

// Close 释放空闲连接
func (r *HTTPRunner) Close(context.Context) error {
	r.httpClient.CloseIdleConnections()
	return nil
}
