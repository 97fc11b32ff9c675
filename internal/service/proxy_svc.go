package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/metrics"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
)

// ErrProxyExists IP+Port 已录入
var ErrProxyExists = errors.New("proxy already exists (IP:Port conflict)")

// ProxyServiceConfig 巡检参数
type ProxyServiceConfig struct {
	ProbeURL     string        // 连通性探测地址，一般指向目录站点
	ProbeTimeout time.Duration // 单次探测超时
	MaxFailCount int           // 超过判定 IP 死亡
}

type ProxyService struct {
	ProxyRepo repository.ProxyRepository

	probeURL     string
	probeTimeout time.Duration
	maxFailCount int
	log          *zap.Logger
}

func NewProxyService(proxyRepo repository.ProxyRepository, cfg ProxyServiceConfig, log *zap.Logger) *ProxyService {
	if cfg.MaxFailCount <= 0 {
		cfg.MaxFailCount = 10
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &ProxyService{
		ProxyRepo:    proxyRepo,
		probeURL:     cfg.ProbeURL,
		probeTimeout: cfg.ProbeTimeout,
		maxFailCount: cfg.MaxFailCount,
		log:          log.Named("proxy"),
	}
}

// 1. 写入逻辑

// CreateProxy 录入代理
func (s *ProxyService) CreateProxy(ctx context.Context, req dto.CreateProxyReq) (*model.Proxy, error) {
	// 1. 查重：防止 IP+Port 重复
	existProxy, err := s.ProxyRepo.FindByEndpoint(ctx, req.IP, req.Port)
	if err != nil {
		return nil, err
	}
	if existProxy != nil {
		return nil, ErrProxyExists
	}

	// 2. DTO -> Model
	protocol := req.Protocol
	if protocol == "" {
		protocol = "http"
	}
	proxy := &model.Proxy{
		IP:       req.IP,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Protocol: protocol,
		Status:   model.ProxyStatusNormal,
		IsActive: true,
	}

	// 3. 落库
	if err := s.ProxyRepo.Create(ctx, proxy); err != nil {
		return nil, err
	}
	return proxy, nil
}

// ImportProxies 启动时从配置导入代理，已存在的跳过
// 返回新导入的数量
func (s *ProxyService) ImportProxies(ctx context.Context, raws []string) (int, error) {
	imported := 0
	for _, raw := range raws {
		p, err := model.ParseProxy(raw)
		if err != nil {
			s.log.Warn("invalid proxy seed, skipped", zap.String("raw", raw), zap.Error(err))
			continue
		}
		exist, err := s.ProxyRepo.FindByEndpoint(ctx, p.IP, p.Port)
		if err != nil {
			return imported, err
		}
		if exist != nil {
			continue
		}
		if err := s.ProxyRepo.Create(ctx, p); err != nil {
			return imported, err
		}
		imported++
	}
	if imported > 0 {
		s.log.Info("proxies imported", zap.Int("count", imported))
	}
	return imported, nil
}

// 2. 读取逻辑

// GetProxyList 分页列表
func (s *ProxyService) GetProxyList(ctx context.Context, filter repository.ProxyFilter) ([]dto.ProxyResp, int64, error) {
	list, total, err := s.ProxyRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	respList := make([]dto.ProxyResp, 0, len(list))
	for i := range list {
		respList = append(respList, convertProxyResp(&list[i]))
	}
	return respList, total, nil
}

func convertProxyResp(p *model.Proxy) dto.ProxyResp {
	resp := dto.ProxyResp{
		ID:           p.ID,
		IP:           p.IP,
		Port:         p.Port,
		Username:     p.Username,
		Protocol:     p.Protocol,
		Status:       p.Status,
		FailureCount: p.FailureCount,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt.Unix(),
	}
	if p.LastCheckTime != nil {
		resp.LastCheckTime = p.LastCheckTime.Unix()
	}
	return resp
}

// 3. 巡检

// VerifyAndHeal 对指定 Proxy 做一次体检并回写状态
// 场景：Cron 巡检循环调用；抓取客户端发现代理拨号失败时单点调用
func (s *ProxyService) VerifyAndHeal(ctx context.Context, proxy *model.Proxy) error {
	// A. 探测连通性
	isAlive := s.TestConnectivity(ctx, proxy)
	metrics.RecordProxyCheck(isAlive)

	if isAlive {
		if proxy.FailureCount > 0 || proxy.Status != model.ProxyStatusNormal {
			proxy.FailureCount = 0
			proxy.Status = model.ProxyStatusNormal
			if err := s.ProxyRepo.UpdateStatusAndCount(ctx, proxy); err != nil {
				s.log.Error("update proxy status failed", zap.Int64("proxy", proxy.ID), zap.Error(err))
				return err
			}
			return nil
		}
		if err := s.ProxyRepo.UpdateLastCheckTime(ctx, proxy.ID); err != nil {
			s.log.Error("update proxy check time failed", zap.Int64("proxy", proxy.ID), zap.Error(err))
			return err
		}
		return nil
	}

	// B. 异常：累加失败次数
	proxy.FailureCount++
	s.log.Warn("proxy connect failed",
		zap.String("ip", proxy.IP),
		zap.Int("failure_count", proxy.FailureCount),
	)

	// 判定是否彻底报废
	if proxy.FailureCount >= s.maxFailCount {
		proxy.Status = model.ProxyStatusDead
		s.log.Warn("proxy is dead (max fail count reached)", zap.String("ip", proxy.IP))
	} else {
		proxy.Status = model.ProxyStatusUnstable
	}

	return s.ProxyRepo.UpdateStatusAndCount(ctx, proxy)
}

// TestConnectivity 经代理请求探测地址，2xx 视为可用
func (s *ProxyService) TestConnectivity(ctx context.Context, proxy *model.Proxy) bool {
	if s.probeURL == "" {
		return false
	}
	proxyURL, err := proxy.ProxyToURL()
	if err != nil {
		return false
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
		Timeout: s.probeTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// PickRandomProxy 随机取一个可用代理，正常状态优先
func (s *ProxyService) PickRandomProxy(ctx context.Context) (*model.Proxy, error) {
	return s.ProxyRepo.GetRandomProxy(ctx)
}
