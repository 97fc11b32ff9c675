package net

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingDoc struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
}

func newTestClient(cfg ClientConfig, provider ProxyProvider) *Client {
	return NewClient(cfg, provider, zap.NewNop())
}

func TestClient_FetchJSON_Direct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"path":"` + r.URL.Path + `"}`))
	}))
	defer srv.Close()

	c := newTestClient(ClientConfig{}, nil)

	var doc pingDoc
	require.NoError(t, c.FetchJSON(context.Background(), srv.URL+"/a/b", false, &doc))
	assert.True(t, doc.OK)
	assert.Equal(t, "/a/b", doc.Path)
}

func TestClient_FetchJSON_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(ClientConfig{}, nil)

	var doc pingDoc
	err := c.FetchJSON(context.Background(), srv.URL, false, &doc)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonStatus, fe.Reason)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, srv.URL, fe.URL)
}

func TestClient_FetchJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": tru`))
	}))
	defer srv.Close()

	c := newTestClient(ClientConfig{}, nil)

	var doc pingDoc
	err := c.FetchJSON(context.Background(), srv.URL, false, &doc)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonDecode, fe.Reason)
}

func TestClient_FetchJSON_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := newTestClient(ClientConfig{}, nil)

	var doc pingDoc
	err := c.FetchJSON(context.Background(), addr, false, &doc)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonTransport, fe.Reason)
}

func TestClient_FetchJSON_AggregatorWrapping(t *testing.T) {
	var gotKey, gotTarget string
	aggregator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotTarget = r.URL.Query().Get("url")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer aggregator.Close()

	c := newTestClient(ClientConfig{
		ProxyEndpoint: aggregator.URL + "/v1/",
		ProxyAPIKey:   "secret",
	}, nil)

	target := "https://api.example.com/v4/search/?page=2&size=100"
	var doc pingDoc
	require.NoError(t, c.FetchJSON(context.Background(), target, true, &doc))

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, target, gotTarget)
}

func TestClient_FetchJSON_ProxyRequiredButMissing(t *testing.T) {
	c := newTestClient(ClientConfig{}, nil)

	var doc pingDoc
	err := c.FetchJSON(context.Background(), "http://example.invalid/x", true, &doc)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonProxy, fe.Reason)
	assert.ErrorIs(t, err, ErrNoProxyConfigured)
}

type staticProvider struct {
	proxy    *url.URL
	mu       sync.Mutex
	reported []*url.URL
}

func (p *staticProvider) GetProxy(ctx context.Context) (*url.URL, error) { return p.proxy, nil }

func (p *staticProvider) ReportError(ctx context.Context, proxyURL *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reported = append(p.reported, proxyURL)
}

func TestClient_FetchJSON_RotatingProxy(t *testing.T) {
	// 正向代理收到的是绝对 URI 请求
	var seen string
	forward := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.String()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer forward.Close()

	proxyURL, _ := url.Parse(forward.URL)
	provider := &staticProvider{proxy: proxyURL}
	c := newTestClient(ClientConfig{}, provider)

	var doc pingDoc
	require.NoError(t, c.FetchJSON(context.Background(), "http://catalog.test/items?page=1", true, &doc))

	assert.True(t, doc.OK)
	assert.Equal(t, "http://catalog.test/items?page=1", seen)
	assert.Empty(t, provider.reported)
}

func TestClient_FetchJSON_RotatingProxyFailureReported(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	proxyURL, _ := url.Parse(dead.URL)
	dead.Close()

	provider := &staticProvider{proxy: proxyURL}
	c := newTestClient(ClientConfig{}, provider)

	var doc pingDoc
	err := c.FetchJSON(context.Background(), "http://catalog.test/items", true, &doc)
	require.Error(t, err)

	require.Len(t, provider.reported, 1)
	assert.Equal(t, proxyURL.String(), provider.reported[0].String())
}

func TestWrapProxyURL(t *testing.T) {
	got, err := WrapProxyURL("https://proxy.example.io/v1/", "k", "https://a.b/c?d=1")
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example.io/v1/?api_key=k&url=https%3A%2F%2Fa.b%2Fc%3Fd%3D1", got)

	_, err = WrapProxyURL("not a url", "k", "https://a.b")
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("https://api.example.com/v4/search/?page=1", "/v4/search/?page=2")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v4/search/?page=2", got)

	got, err = ResolveURL("https://api.example.com/v4/search/?page=1", "https://other.example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/x", got)
}
