package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"catalog_crawler_v1/internal/crawler"
)

// EnvPrefix 环境变量前缀，例如 CRAWLER_DATABASE_DSN
const EnvPrefix = "CRAWLER"

// ==================== 配置结构 ====================

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin: debug / release / test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent / error / warn / info
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / console
}

type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
	UserAgent     string        `mapstructure:"user_agent"`
	RPS           float64       `mapstructure:"rps"`
	Burst         int           `mapstructure:"burst"`
	ProxyEndpoint string        `mapstructure:"proxy_endpoint"`
	ProxyAPIKey   string        `mapstructure:"proxy_api_key"`
}

type CrawlConfig struct {
	DetailConcurrency int           `mapstructure:"detail_concurrency"`
	MaxPages          int           `mapstructure:"max_pages"`
	Schedule          string        `mapstructure:"schedule"`
	RunTimeout        time.Duration `mapstructure:"run_timeout"`
	ProgressInterval  time.Duration `mapstructure:"progress_interval"`
	TriggerCooldown   time.Duration `mapstructure:"trigger_cooldown"`
	MinItems          int64         `mapstructure:"min_items"`
	Jobs              []JobConfig   `mapstructure:"jobs"`
}

type JobConfig struct {
	Name     string `mapstructure:"name"`
	SeedURL  string `mapstructure:"seed_url"`
	UseProxy bool   `mapstructure:"use_proxy"`
}

type ProxyConfig struct {
	MonitorEnabled  bool          `mapstructure:"monitor_enabled"`
	MonitorSchedule string        `mapstructure:"monitor_schedule"`
	ProbeURL        string        `mapstructure:"probe_url"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	MaxFailCount    int           `mapstructure:"max_fail_count"`
	Seeds           []string      `mapstructure:"seeds"`
}

// ==================== 加载 ====================

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=catalog port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.retry_count", 2)
	v.SetDefault("fetch.retry_wait", time.Second)
	v.SetDefault("fetch.user_agent", "catalog-crawler/1.0")
	v.SetDefault("fetch.rps", 5.0)
	v.SetDefault("fetch.burst", 5)
	v.SetDefault("fetch.proxy_endpoint", "")
	v.SetDefault("fetch.proxy_api_key", "")

	v.SetDefault("crawl.detail_concurrency", 8)
	v.SetDefault("crawl.max_pages", 500)
	v.SetDefault("crawl.schedule", "")
	v.SetDefault("crawl.run_timeout", 6*time.Hour)
	v.SetDefault("crawl.progress_interval", 30*time.Second)
	v.SetDefault("crawl.trigger_cooldown", time.Minute)
	v.SetDefault("crawl.min_items", 1)

	v.SetDefault("proxy.monitor_enabled", true)
	v.SetDefault("proxy.monitor_schedule", "0 0/15 * * * *")
	v.SetDefault("proxy.probe_url", "https://api.torob.com/robots.txt")
	v.SetDefault("proxy.probe_timeout", 10*time.Second)
	v.SetDefault("proxy.max_fail_count", 10)
	v.SetDefault("proxy.seeds", []string{})
}

// LoadDotEnv 加载 .env，文件不存在时忽略
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load 读取配置文件 (可选) + 环境变量覆盖
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 任务名唯一、种子地址为绝对 URL
func (c *Config) Validate() error {
	if c.Crawl.DetailConcurrency < 1 {
		return fmt.Errorf("crawl.detail_concurrency must be >= 1, got %d", c.Crawl.DetailConcurrency)
	}

	seen := make(map[string]struct{}, len(c.Crawl.Jobs))
	for i, job := range c.Crawl.Jobs {
		name := strings.TrimSpace(job.Name)
		if name == "" {
			return fmt.Errorf("crawl.jobs[%d]: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("crawl.jobs[%d]: duplicate job name %q", i, name)
		}
		seen[name] = struct{}{}

		u, err := url.Parse(job.SeedURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("crawl.jobs[%d] (%s): seed_url must be an absolute URL", i, name)
		}
	}
	return nil
}

// Specs 转为任务定义
func (c *Config) Specs() []crawler.JobSpec {
	specs := make([]crawler.JobSpec, 0, len(c.Crawl.Jobs))
	for _, job := range c.Crawl.Jobs {
		specs = append(specs, crawler.JobSpec{
			Name:     strings.TrimSpace(job.Name),
			SeedURL:  job.SeedURL,
			UseProxy: job.UseProxy,
		})
	}
	return specs
}
