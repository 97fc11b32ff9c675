package net

import (
	"errors"
	"fmt"
)

// 失败原因分类
const (
	ReasonTransport = "transport"  // 连接失败 / 超时 / 代理拨号失败
	ReasonStatus    = "status"     // 非 2xx 响应
	ReasonDecode    = "decode"     // 响应体不是合法 JSON
	ReasonProxy     = "proxy"      // 要求走代理但没有可用的代理配置
	ReasonRateLimit = "rate_limit" // 等待本地令牌时 ctx 结束
)

// ErrNoProxyConfigured 请求要求代理，但既没有聚合端点也没有代理池
var ErrNoProxyConfigured = errors.New("no proxy endpoint or proxy pool configured")

// FetchError 所有抓取失败的统一错误类型
// URL 始终是目标地址，不是包装后的代理地址 (避免日志泄露 api_key)
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err == nil:
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Reason, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError 判断 err 链上是否有 FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
