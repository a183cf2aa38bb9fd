package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/types"
)

const userAgent = "FlowAgent/1.0"

// HTTPRegistry talks to a flow orchestrator exposing
// GET /flows, GET /flows/:id and POST /flows/:id/execute.
type HTTPRegistry struct {
	baseURL    string
	httpClient *http.Client
}

var _ Registry = (*HTTPRegistry)(nil)

func NewHTTPRegistry(baseURL string, timeout time.Duration) *HTTPRegistry {
	return &HTTPRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *HTTPRegistry) ListFlows(ctx context.Context) ([]types.FlowSummary, error) {
	body, err := r.do(ctx, http.MethodGet, "/flows", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list flows: %w", types.ErrRegistry, err)
	}
	var flows []types.FlowSummary
	if err := sonic.Unmarshal(body, &flows); err != nil {
		return nil, fmt.Errorf("%w: decode flow list: %w", types.ErrRegistry, err)
	}
	out := flows[:0]
	for _, f := range flows {
		if f.ID != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *HTTPRegistry) GetFlowSchema(ctx context.Context, flowID string) (*types.FlowSchema, error) {
	body, err := r.do(ctx, http.MethodGet, "/flows/"+url.PathEscape(flowID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get flow %s: %w", types.ErrRegistry, flowID, err)
	}
	var schema types.FlowSchema
	if err := sonic.Unmarshal(body, &schema); err != nil {
		return nil, fmt.Errorf("%w: decode flow %s: %w", types.ErrRegistry, flowID, err)
	}
	if schema.ID == "" {
		schema.ID = flowID
	}
	return &schema, nil
}

func (r *HTTPRegistry) Execute(ctx context.Context, flowID string, inputs map[string]any) (any, error) {
	payload, err := sonic.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: encode inputs: %w", types.ErrRegistry, err)
	}
	body, err := r.do(ctx, http.MethodPost, "/flows/"+url.PathEscape(flowID)+"/execute", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: execute flow %s: %w", types.ErrRegistry, flowID, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var result any
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode result of %s: %w", types.ErrRegistry, flowID, err)
	}
	return result, nil
}

func (r *HTTPRegistry) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		slog.Error("Registry request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", time.Since(start)),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		slog.Error("Registry returned HTTP error",
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode),
			log.ErrorString(msg))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	slog.Debug("Registry request done",
		slog.String("method", method),
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return body, nil
}
