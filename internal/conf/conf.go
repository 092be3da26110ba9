package conf

import "time"

// Bootstrap 启动配置（由 kratos config 从 yaml 扫描）
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Plans   *Plans   `json:"plans"`
	Gateway *Gateway `json:"gateway"`
}

// Server 服务端配置
type Server struct {
	HTTP *HTTPServer `json:"http"`
}

// HTTPServer HTTP 服务配置
type HTTPServer struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
}

// Database 数据库配置
type Database struct {
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string `json:"addr"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// Rocketmq 消息队列配置（用量流水异步落库）
type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int      `json:"retry_times"`
}

// Plans 套餐目录配置
type Plans struct {
	// Ceilings 档位 -> 每日补给上限，-1 表示不限量
	Ceilings map[string]int64 `json:"ceilings"`
	// LowAllocationPercent 补给池告警阈值（剩余百分比）
	LowAllocationPercent float64 `json:"low_allocation_percent"`
}

// Gateway 支付网关配置
type Gateway struct {
	Endpoint string `json:"endpoint"`
	Timeout  string `json:"timeout"`
	// NotifyURL 网关回调地址（支付结果回传）
	NotifyURL string `json:"notify_url"`
	// ReturnURL 支付完成后的跳转地址
	ReturnURL string `json:"return_url"`
	// PendingTTL 待支付订单有效期
	PendingTTL string `json:"pending_ttl"`
	// TokenPriceMinorUnits 单个代币价格（最小货币单位）
	TokenPriceMinorUnits int64 `json:"token_price_minor_units"`
}

// ParseDuration 解析配置中的时长字符串，非法或为空时返回默认值
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
