package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"count": 3}`)
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("page", "2")
	got, err := GetJSON[map[string]any](context.Background(), srv.Client(), srv.URL, params)
	if err != nil {
		t.Fatal(err)
	}
	if got["count"].(float64) != 3 {
		t.Errorf("got %v", got)
	}
}

func TestGetJSONErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad-status":
			http.Error(w, "nope", http.StatusForbidden)
		case "/bad-json":
			fmt.Fprint(w, `{"truncated":`)
		}
	}))
	defer srv.Close()

	if _, err := GetJSON[map[string]any](context.Background(), srv.Client(), srv.URL+"/bad-status", nil); err == nil {
		t.Error("non-2xx must fail")
	}
	if _, err := GetJSON[map[string]any](context.Background(), srv.Client(), srv.URL+"/bad-json", nil); err == nil {
		t.Error("malformed json must fail")
	}
}

func TestItems(t *testing.T) {
	bare := []any{map[string]any{"id": "1"}, "not-an-object", map[string]any{"id": "2"}}
	if got := Items(bare, "events"); len(got) != 2 {
		t.Errorf("bare list: got %d records", len(got))
	}

	wrapped := map[string]any{"events": []any{map[string]any{"id": "1"}}}
	if got := Items(wrapped, "events"); len(got) != 1 {
		t.Errorf("wrapped list: got %d records", len(got))
	}

	if got := Items("garbage", "events"); got != nil {
		t.Errorf("unrecognized payload: got %v", got)
	}
	if got := Items(map[string]any{"other": []any{}}, "events"); got != nil {
		t.Errorf("missing wrapper key: got %v", got)
	}
}
