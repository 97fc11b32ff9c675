package dto

// Request DTO

// CreateProxyReq 录入代理
type CreateProxyReq struct {
	IP       string `json:"ip" binding:"required"`
	Port     string `json:"port" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
	// 协议限制校验
	Protocol string `json:"protocol" binding:"omitempty,oneof=http https socks5"`
}

// Response DTO

// ProxyResp 代理列表返回结构
type ProxyResp struct {
	ID            int64  `json:"id"`
	IP            string `json:"ip"`
	Port          string `json:"port"`
	Username      string `json:"username"`
	Protocol      string `json:"protocol"`
	Status        int    `json:"status"`
	FailureCount  int    `json:"failure_count"`
	LastCheckTime int64  `json:"last_check_time"` // 时间戳，0 表示未巡检
	IsActive      bool   `json:"is_active"`
	CreatedAt     int64  `json:"created_at"`
}
