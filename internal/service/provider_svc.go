package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"catalog_crawler_v1/pkg/net"
)

// NetworkProvider 专门实现 pkg/net.ProxyProvider 接口 (代理池模式)
type NetworkProvider struct {
	ProxyService *ProxyService
	log          *zap.Logger
}

var _ net.ProxyProvider = (*NetworkProvider)(nil)

func NewNetworkProvider(proxyService *ProxyService, log *zap.Logger) *NetworkProvider {
	return &NetworkProvider{
		ProxyService: proxyService,
		log:          log.Named("network"),
	}
}

// GetProxy 实现接口：每次拨号随机取一个可用代理
func (n *NetworkProvider) GetProxy(ctx context.Context) (*url.URL, error) {
	proxy, err := n.ProxyService.PickRandomProxy(ctx)
	if err != nil {
		return nil, fmt.Errorf("no proxy available: %w", err)
	}
	return proxy.ProxyToURL()
}

// ReportError 实现接口：处理故障
// 找到对应代理后异步触发一次巡检，不阻塞抓取
func (n *NetworkProvider) ReportError(ctx context.Context, proxyURL *url.URL) {
	if proxyURL == nil {
		return
	}
	proxy, err := n.ProxyService.ProxyRepo.FindByEndpoint(ctx, proxyURL.Hostname(), proxyURL.Port())
	if err != nil {
		n.log.Error("lookup reported proxy failed", zap.String("proxy", proxyURL.Host), zap.Error(err))
		return
	}
	if proxy == nil {
		n.log.Warn("reported proxy not in pool", zap.String("proxy", proxyURL.Host))
		return
	}

	n.log.Info("收到故障上报，触发巡检", zap.String("proxy", proxyURL.Host))

	// 异步巡检 (复用 ProxyService 能力)
	go func() {
		checkCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.ProxyService.VerifyAndHeal(checkCtx, proxy); err != nil {
			n.log.Error("verify proxy failed", zap.Int64("proxy", proxy.ID), zap.Error(err))
		}
	}()
}
