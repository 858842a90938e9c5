// Package fetch holds the one HTTP idiom every adapter shares: a GET
// against a provider JSON endpoint using the client the orchestrator
// scoped to the run. Any transport or decode failure here is run-fatal
// for the calling adapter.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/oarkflow/json"
)

// GetJSON issues a GET and decodes the JSON response into T.
func GetJSON[T any](ctx context.Context, client *http.Client, rawURL string, params url.Values) (T, error) {
	var out T
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	res, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return out, fmt.Errorf("GET %s returned status %s", rawURL, res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return out, nil
}

// Items normalizes a decoded payload that is either a bare list or an
// object wrapping a list under the given key.
func Items(data any, wrapperKey string) []map[string]any {
	switch v := data.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		if inner, ok := v[wrapperKey].([]any); ok {
			return toRecords(inner)
		}
	}
	return nil
}

func toRecords(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}
