package validate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/tbxark/flowagent/log"
)

// HTTPValidator posts {"value": v} and expects {"valid": true}.
type HTTPValidator struct {
	httpClient *http.Client
}

var _ Remote = (*HTTPValidator)(nil)

func NewHTTPValidator(timeout time.Duration) *HTTPValidator {
	return &HTTPValidator{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (v *HTTPValidator) Validate(ctx context.Context, url string, value any) (bool, error) {
	body, err := sonic.Marshal(map[string]any{"value": value})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		slog.Warn("Validator call failed", slog.String("url", url), log.Error(err))
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("validator returned HTTP %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if !gjson.ValidBytes(respBody) {
		return false, fmt.Errorf("validator returned malformed JSON")
	}
	return gjson.GetBytes(respBody, "valid").Type == gjson.True, nil
}
