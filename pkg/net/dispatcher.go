package net

import (
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProxyProvider 定义“提供代理”的行为标准 (代理池模式)
type ProxyProvider interface {
	// GetProxy 取一个可用的出口代理
	GetProxy(ctx context.Context) (*url.URL, error)

	// ReportError 上报该代理请求失败
	// 业务层实现需在此方法中执行：标记故障、触发巡检等
	ReportError(ctx context.Context, proxyURL *url.URL)
}

// Fetcher 抓取目标 URL 并解码 JSON
type Fetcher interface {
	FetchJSON(ctx context.Context, target string, useProxy bool, out interface{}) error
}

// ClientConfig 抓取客户端配置
type ClientConfig struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	UserAgent  string

	// 本地限速，RPS <= 0 表示不限速
	RPS   float64
	Burst int

	// 代理聚合端点 (包装模式)，为空时回退到代理池模式
	ProxyEndpoint string
	ProxyAPIKey   string
}

// Client 是 Fetcher 的具体实现
// direct: 直连 (含聚合端点包装模式)
// rotating: 经代理池出口，ProxyProvider 为空时不创建
type Client struct {
	cfg      ClientConfig
	direct   *resty.Client
	rotating *resty.Client
	provider ProxyProvider
	limiter  *rate.Limiter
	log      *zap.Logger
}

var _ Fetcher = (*Client)(nil)

// proxyRecord 记录本次请求实际使用的代理，失败时用于上报
type proxyRecord struct {
	url atomic.Pointer[url.URL]
}

type proxyRecordKey struct{}

func NewClient(cfg ClientConfig, provider ProxyProvider, log *zap.Logger) *Client {
	c := &Client{
		cfg:      cfg,
		provider: provider,
		log:      log.Named("fetch"),
	}

	c.direct = c.newResty(nil)
	if provider != nil {
		c.rotating = c.newResty(&http.Transport{
			Proxy:           c.proxyFunc,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		})
	}

	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return c
}

// newResty 统一的 resty 客户端构建
func (c *Client) newResty(transport http.RoundTripper) *resty.Client {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := c.cfg.UserAgent
	if ua == "" {
		ua = "catalog-crawler/1.0"
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json").
		SetRetryCount(c.cfg.RetryCount).
		SetLogger(c.log.Sugar()).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	if c.cfg.RetryWait > 0 {
		client.SetRetryWaitTime(c.cfg.RetryWait).SetRetryMaxWaitTime(c.cfg.RetryWait * 4)
	}
	if transport != nil {
		client.SetTransport(transport)
	}
	return client
}

// proxyFunc 代理池模式下，每次拨号前向 ProxyProvider 取代理
func (c *Client) proxyFunc(req *http.Request) (*url.URL, error) {
	proxyURL, err := c.provider.GetProxy(req.Context())
	if err != nil {
		return nil, err
	}
	if rec, ok := req.Context().Value(proxyRecordKey{}).(*proxyRecord); ok {
		rec.url.Store(proxyURL)
	}
	return proxyURL, nil
}

// FetchJSON 发送 GET 请求并把 JSON 响应解码到 out
// 连接失败、非 2xx、JSON 解析失败统一返回 *FetchError，是否重试/跳过由调用方决定
func (c *Client) FetchJSON(ctx context.Context, target string, useProxy bool, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{URL: target, Reason: ReasonRateLimit, Err: err}
		}
	}

	client, reqURL, err := c.route(target, useProxy)
	if err != nil {
		return err
	}

	rec := &proxyRecord{}
	reqCtx := context.WithValue(ctx, proxyRecordKey{}, rec)

	resp, err := client.R().SetContext(reqCtx).Get(reqURL)
	if err != nil {
		if used := rec.url.Load(); used != nil && c.provider != nil {
			c.provider.ReportError(ctx, used)
		}
		return &FetchError{URL: target, Reason: ReasonTransport, Err: err}
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return &FetchError{URL: target, StatusCode: code, Reason: ReasonStatus}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &FetchError{URL: target, StatusCode: resp.StatusCode(), Reason: ReasonDecode, Err: err}
	}

	c.log.Debug("fetched",
		zap.String("url", target),
		zap.Bool("proxy", useProxy),
		zap.Duration("elapsed", resp.Time()),
	)
	return nil
}

// route 选择本次请求的客户端与实际请求地址
func (c *Client) route(target string, useProxy bool) (*resty.Client, string, error) {
	if !useProxy {
		return c.direct, target, nil
	}

	if c.cfg.ProxyEndpoint != "" {
		wrapped, err := WrapProxyURL(c.cfg.ProxyEndpoint, c.cfg.ProxyAPIKey, target)
		if err != nil {
			return nil, "", &FetchError{URL: target, Reason: ReasonProxy, Err: err}
		}
		return c.direct, wrapped, nil
	}

	if c.rotating != nil {
		return c.rotating, target, nil
	}

	return nil, "", &FetchError{URL: target, Reason: ReasonProxy, Err: ErrNoProxyConfigured}
}
