package net

import (
	"fmt"
	"net/url"
)

// WrapProxyURL 将目标地址包装为代理聚合端点的查询参数
// 例如: https://proxy.example.io/v1/?api_key=KEY&url=<target>
// 聚合端点负责选 IP、重试和反爬，调用方只看到一个普通的 GET
func WrapProxyURL(endpoint, apiKey, target string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid proxy endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid proxy endpoint %q: missing scheme or host", endpoint)
	}

	q := u.Query()
	if apiKey != "" {
		q.Set("api_key", apiKey)
	}
	q.Set("url", target)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ResolveURL 相对地址按 base 解析为绝对地址
// 分页接口返回的 next 和详情链接可能是相对路径
func ResolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
