package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"catalog_crawler_v1/internal/model"
)

// ProxyRepository 代理池仓储接口
type ProxyRepository interface {
	Create(ctx context.Context, proxy *model.Proxy) error
	GetByID(ctx context.Context, id int64) (*model.Proxy, error)
	FindByEndpoint(ctx context.Context, ip, port string) (*model.Proxy, error)
	GetRandomProxy(ctx context.Context) (*model.Proxy, error)
	List(ctx context.Context, filter ProxyFilter) ([]model.Proxy, int64, error)

	// 巡检
	FindCheckList(ctx context.Context) ([]model.Proxy, error)
	UpdateStatusAndCount(ctx context.Context, proxy *model.Proxy) error
	UpdateLastCheckTime(ctx context.Context, proxyID int64) error
}

// ProxyFilter 列表查询的过滤条件
type ProxyFilter struct {
	Pagination
	IP     string
	Status int
}

type proxyRepo struct {
	db *gorm.DB
}

func NewProxyRepository(db *gorm.DB) ProxyRepository {
	return &proxyRepo{db: db}
}

// 1. 增改

// Create 创建代理
func (r *proxyRepo) Create(ctx context.Context, proxy *model.Proxy) error {
	return r.db.WithContext(ctx).Create(proxy).Error
}

// 2. 查询

func (r *proxyRepo) GetByID(ctx context.Context, id int64) (*model.Proxy, error) {
	var proxy model.Proxy
	if err := r.db.WithContext(ctx).First(&proxy, id).Error; err != nil {
		return nil, err
	}
	return &proxy, nil
}

// FindByEndpoint 根据 IP 和 Port 查重
// 没找到返回 (nil, nil)
func (r *proxyRepo) FindByEndpoint(ctx context.Context, ip, port string) (*model.Proxy, error) {
	var proxy model.Proxy
	err := r.db.WithContext(ctx).
		Where("ip = ? AND port = ?", ip, port).
		First(&proxy).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &proxy, nil
}

// GetRandomProxy 随机获取一个可用代理 (正常或暂时不稳定)
func (r *proxyRepo) GetRandomProxy(ctx context.Context) (*model.Proxy, error) {
	var proxy model.Proxy
	err := r.db.WithContext(ctx).
		Where("status IN ? AND is_active = ?", []int{model.ProxyStatusNormal, model.ProxyStatusUnstable}, true).
		Order("status ASC").
		Order("RANDOM()").
		Take(&proxy).Error
	if err != nil {
		return nil, err
	}
	return &proxy, nil
}

// List 获取分页列表
func (r *proxyRepo) List(ctx context.Context, filter ProxyFilter) ([]model.Proxy, int64, error) {
	var list []model.Proxy
	var total int64

	page := filter.Pagination.Normalize()
	db := r.db.WithContext(ctx).Model(&model.Proxy{})

	// --- 动态构建查询条件 ---
	if filter.IP != "" {
		db = db.Where("ip LIKE ?", "%"+filter.IP+"%")
	}
	if filter.Status > 0 {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&list).Error

	return list, total, err
}

// 3. 巡检

// FindCheckList 只有 status = 3 的才被抛弃
func (r *proxyRepo) FindCheckList(ctx context.Context) ([]model.Proxy, error) {
	var list []model.Proxy
	err := r.db.WithContext(ctx).Model(&model.Proxy{}).
		Where("status != ? AND is_active = ?", model.ProxyStatusDead, true).
		Find(&list).Error
	return list, err
}

// UpdateLastCheckTime 更新 monitor 最后检测时间
func (r *proxyRepo) UpdateLastCheckTime(ctx context.Context, proxyID int64) error {
	return r.db.WithContext(ctx).Model(&model.Proxy{}).
		Where("id = ?", proxyID).
		Update("last_check_time", time.Now()).Error
}

// UpdateStatusAndCount 状态与失败次数一起写
// 用 map 而不是结构体，FailureCount 归零时也要写入
func (r *proxyRepo) UpdateStatusAndCount(ctx context.Context, proxy *model.Proxy) error {
	return r.db.WithContext(ctx).Model(&model.Proxy{}).
		Where("id = ?", proxy.ID).
		Updates(map[string]interface{}{
			"status":          proxy.Status,
			"failure_count":   proxy.FailureCount,
			"last_check_time": time.Now(),
		}).Error
}
