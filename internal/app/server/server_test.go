package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/repository"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/app/shortcode"
	inthttp "github.com/sifan077/LinkPulse/internal/http/handler"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv    *Server
	tokens *httpUtil.TokenSigner
}

func newTestServer(t *testing.T, checks map[string]inthttp.Pinger) *testServer {
	t.Helper()

	links := repository.NewMemoryLinkRepository()
	svc := service.NewLinkService(service.Deps{
		Links: links,
		Generator: shortcode.NewGenerator(shortcode.Deps{
			Lookup: links,
			Config: shortcode.Config{Length: 7, BaseDelay: time.Microsecond},
		}),
	})
	tokens := httpUtil.NewTokenSigner([]byte("test-secret"), time.Hour)

	return &testServer{
		srv: New(Dependencies{
			LinkService: svc,
			Tokens:      tokens,
			BaseURL:     "https://lp.example/",
			Checks:      checks,
		}),
		tokens: tokens,
	}
}

func (ts *testServer) do(t *testing.T, method, path, owner string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	if owner != "" {
		token, err := ts.tokens.Issue(owner)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestShortenAndRedirect(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/urls", "", map[string]string{"url": "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)
	assert.Equal(t, "https://example.com", body["original_url"])
	assert.Equal(t, "https://lp.example/"+code, body["short_url"])
	assert.Equal(t, true, body["is_new"])

	resp, body = ts.do(t, http.MethodPost, "/api/urls", "", map[string]string{"url": "https://EXAMPLE.com/"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, code, body["code"])
	assert.Equal(t, false, body["is_new"])

	resp, _ = ts.do(t, http.MethodGet, "/"+code, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.Header.Get("Location"))

	resp, body = ts.do(t, http.MethodGet, "/api/urls/"+code+"/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := body["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "203.0.113.xxx", history[0].(map[string]any)["ip"])

	resp, _ = ts.do(t, http.MethodGet, "/doesnotexist", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRedirect_ClickLogKeepsRequestValues(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/urls", "", map[string]string{"url": "https://example.com/kept"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)

	visit := func(ua, ip string) {
		req := httptest.NewRequest(http.MethodGet, "/"+code, nil)
		req.Header.Set("User-Agent", ua)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := ts.srv.App().Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusFound, resp.StatusCode)
	}

	firstUA := "First-Agent/" + strings.Repeat("A", 40)
	visit(firstUA, "198.51.100.7")
	for i := 0; i < 50; i++ {
		visit("Other-Agent/"+strings.Repeat("Z", 40), "203.0.113.99")
	}

	resp, body = ts.do(t, http.MethodGet, "/api/urls/"+code+"/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := body["history"].([]any)
	require.Len(t, history, 51)

	var first int
	for _, entry := range history {
		click := entry.(map[string]any)
		if click["user_agent"] == firstUA {
			first++
			assert.Equal(t, "198.51.100.xxx", click["ip"])
		}
	}
	assert.Equal(t, 1, first)
}

func TestShorten_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing url", map[string]string{}, http.StatusBadRequest},
		{"private host", map[string]string{"url": "http://10.0.0.1/admin"}, http.StatusBadRequest},
		{"reserved code", map[string]string{"url": "https://example.com", "custom_code": "api"}, http.StatusBadRequest},
		{"short code", map[string]string{"url": "https://example.com", "custom_code": "ab"}, http.StatusBadRequest},
		{"custom ok", map[string]string{"url": "https://example.com/x", "custom_code": "my-link"}, http.StatusCreated},
		{"custom taken", map[string]string{"url": "https://example.com/y", "custom_code": "my-link"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/api/urls", "", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode, body)
		})
	}
}

func TestOwnerLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/urls", "alice", map[string]string{"url": "https://example.com/mine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)

	resp, _ = ts.do(t, http.MethodGet, "/api/urls/"+code+"/stats", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/urls", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/urls?page=1&limit=5", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["links"], 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	expired := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	resp, _ = ts.do(t, http.MethodPatch, "/api/urls/"+code, "bob", map[string]any{"is_active": false})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPatch, "/api/urls/"+code, "alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPatch, "/api/urls/"+code, "alice", map[string]any{"expires_at": expired})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/"+code, "", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPatch, "/api/urls/"+code, "alice", map[string]any{"expires_at": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["expires_at"])
	resp, _ = ts.do(t, http.MethodGet, "/"+code, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/dashboard", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total_urls"])
	assert.EqualValues(t, 1, body["total_clicks"])
	assert.Len(t, body["last_7_days"], 7)

	resp, _ = ts.do(t, http.MethodDelete, "/api/urls/"+code, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/"+code, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, map[string]inthttp.Pinger{
		"postgres": inthttp.PingFunc(func(ctx context.Context) error { return nil }),
	})
	resp, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	ts = newTestServer(t, map[string]inthttp.Pinger{
		"redis": inthttp.PingFunc(func(ctx context.Context) error { return errors.New("refused") }),
	})
	resp, body = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "down", body["checks"].(map[string]any)["redis"])
}
