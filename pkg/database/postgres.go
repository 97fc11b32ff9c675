package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog_crawler_v1/pkg/logger"
)

// Config 数据库连接配置
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent | error | warn | info
}

// InitDB 初始化数据库连接
// cfg: 连接与连接池参数
// models: 需要自动建表/迁移的结构体指针
func InitDB(cfg Config, log *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), NewGormConfig(log, cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败 (database connection failed): %w", err)
	}
	return Setup(db, cfg, log, models...)
}

// NewGormConfig 统一的 GORM 配置
// TranslateError 打开后，唯一键冲突会被翻译为 gorm.ErrDuplicatedKey
func NewGormConfig(log *zap.Logger, level string) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLogger(log, level),
		TranslateError: true,
	}
}

// Setup 设置连接池并执行 AutoMigrate
// 与驱动无关，测试中的 sqlite 连接也走这里
func Setup(db *gorm.DB, cfg Config, log *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	// 获取底层的 sqlDB 对象，用于设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 SQL DB 失败: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	log.Info("数据库连接成功 (database connected)",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("自动建表出错: %w", err)
		}
	}

	return db, nil
}
