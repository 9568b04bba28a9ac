package supabase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// --- テストヘルパー ---

// recordingObserver は外部呼び出しの記録を保持する。
type recordingObserver struct {
	calls []observedCall
}

type observedCall struct {
	service   string
	operation string
	err       error
}

func (o *recordingObserver) ObserveRemoteCall(service, operation string, _ time.Duration, err error) {
	o.calls = append(o.calls, observedCall{service: service, operation: operation, err: err})
}

// newTestClient はhttptestサーバーに向けたClientを生成する。
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	c, err := New(Config{URL: srv.URL, AnonKey: "anon-key", Observer: obs})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c, obs
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

// unsignedToken はクレームのみを持つ署名なしのJWTを生成する。
func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to encode claims: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2lnbmF0dXJl"
}

// --- テスト ---

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{URL: "https://example.supabase.co", AnonKey: "k"}, false},
		{"trailing slash", Config{URL: "https://example.supabase.co/", AnonKey: "k"}, false},
		{"missing scheme", Config{URL: "example.supabase.co", AnonKey: "k"}, true},
		{"empty url", Config{URL: "", AnonKey: "k"}, true},
		{"missing key", Config{URL: "https://example.supabase.co"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.baseURL != "https://example.supabase.co" {
				t.Errorf("baseURL = %q", c.baseURL)
			}
		})
	}
}

func TestSend_UsesAnonKeyWithoutAccessToken(t *testing.T) {
	var gotAuth, gotKey string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		writeJSON(t, w, http.StatusOK, []any{})
	})

	var rows []map[string]any
	if err := c.Rest.Select(context.Background(), "employees", Query{}, &rows); err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if gotKey != "anon-key" {
		t.Errorf("apikey = %q, want anon-key", gotKey)
	}
	if gotAuth != "Bearer anon-key" {
		t.Errorf("Authorization = %q, want Bearer anon-key", gotAuth)
	}
}

func TestSend_UsesAccessTokenFromContext(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, []any{})
	})

	ctx := WithAccessToken(context.Background(), "user-token")
	var rows []map[string]any
	if err := c.Rest.Select(ctx, "employees", Query{}, &rows); err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if gotAuth != "Bearer user-token" {
		t.Errorf("Authorization = %q, want Bearer user-token", gotAuth)
	}
}

func TestSend_ReportsToObserver(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]string{"message": "bad"})
	})

	var rows []map[string]any
	err := c.Rest.Select(context.Background(), "payrolls", Query{}, &rows)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(obs.calls) != 1 {
		t.Fatalf("observed %d calls, want 1", len(obs.calls))
	}
	call := obs.calls[0]
	if call.service != "rest" || call.operation != "select_payrolls" {
		t.Errorf("observed %s/%s", call.service, call.operation)
	}
	if call.err == nil {
		t.Error("observer should receive the error")
	}
}

func TestSend_InvalidJSONResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	})

	var rows []map[string]any
	if err := c.Rest.Select(context.Background(), "employees", Query{}, &rows); err == nil {
		t.Fatal("expected parse error")
	}
}
