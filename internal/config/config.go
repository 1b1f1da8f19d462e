package config

import (
	"flag"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type MysqlCfg struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
}

type RabbitCfg struct {
	URL string `mapstructure:"url"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SecurityCfg struct {
	HMACSecret string `mapstructure:"hmacSecret"`
}

// ChannelCfg 通道凭证配置，进程启动时注册到 adapter.Registry，之后只读
type ChannelCfg struct {
	Channel    string        `mapstructure:"channel"`
	Methods    []string      `mapstructure:"methods"`
	Regions    []string      `mapstructure:"regions"`
	AppID      string        `mapstructure:"appId"`
	MchID      string        `mapstructure:"mchId"`
	ApiKey     string        `mapstructure:"apiKey"`
	SecretKey  string        `mapstructure:"secretKey"`
	ApiURL     string        `mapstructure:"apiUrl"`
	TimeoutSec int           `mapstructure:"timeoutSec"`
	Timeout    time.Duration `mapstructure:"-"`
}

type OrderCfg struct {
	ExpireMinutes int           `mapstructure:"expireMinutes"`
	MaxRiskAmount string        `mapstructure:"maxRiskAmount"`
	CacheTTLSec   int           `mapstructure:"cacheTTLSec"`
	CacheTTL      time.Duration `mapstructure:"-"`
}

type SchedulerCfg struct {
	ScanIntervalSec   int           `mapstructure:"scanIntervalSec"`
	BackoffBaseSec    int           `mapstructure:"backoffBaseSec"`
	BackoffFactor     float64       `mapstructure:"backoffFactor"`
	BackoffMaxSec     int           `mapstructure:"backoffMaxSec"`
	MaxAttempts       int           `mapstructure:"maxAttempts"`
	StuckSubmittedSec int           `mapstructure:"stuckSubmittedSec"`
	ScanInterval      time.Duration `mapstructure:"-"`
	BackoffBase       time.Duration `mapstructure:"-"`
	BackoffMax        time.Duration `mapstructure:"-"`
	StuckSubmitted    time.Duration `mapstructure:"-"`
}

type CallbackCfg struct {
	OrphanRetentionSec int           `mapstructure:"orphanRetentionSec"`
	OrphanRetention    time.Duration `mapstructure:"-"`
}

type NotifyCfg struct {
	MaxRetry   int `mapstructure:"maxRetry"`
	TimeoutSec int `mapstructure:"timeoutSec"`
}

type Root struct {
	Server    ServerCfg    `mapstructure:"server"`
	Mysql     MysqlCfg     `mapstructure:"mysql"`
	RabbitMQ  RabbitCfg    `mapstructure:"rabbitmq"`
	Redis     RedisCfg     `mapstructure:"redis"`
	Security  SecurityCfg  `mapstructure:"security"`
	Order     OrderCfg     `mapstructure:"order"`
	Scheduler SchedulerCfg `mapstructure:"scheduler"`
	Callback  CallbackCfg  `mapstructure:"callback"`
	Notify    NotifyCfg    `mapstructure:"notify"`
	Channels  []ChannelCfg `mapstructure:"channels"`
}

var C Root

func Init() {
	env := flag.String("env", "dev", "config env: dev|prod")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile("config/config." + *env + ".yaml")
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config file failed: %v", err)
	}
	if err := v.Unmarshal(&C); err != nil {
		log.Fatalf("unmarshal config failed: %v", err)
	}

	ApplyDefaults(&C)
}

// ApplyDefaults 配置兜底，测试可直接构造 Root 后调用
func ApplyDefaults(c *Root) {
	if strings.TrimSpace(c.Server.Port) == "" {
		c.Server.Port = "8080"
	}
	if c.Order.ExpireMinutes <= 0 {
		c.Order.ExpireMinutes = 30
	}
	if c.Order.CacheTTLSec <= 0 {
		c.Order.CacheTTLSec = 600
	}
	c.Order.CacheTTL = time.Duration(c.Order.CacheTTLSec) * time.Second

	if c.Scheduler.ScanIntervalSec <= 0 {
		c.Scheduler.ScanIntervalSec = 30
	}
	if c.Scheduler.BackoffBaseSec <= 0 {
		c.Scheduler.BackoffBaseSec = 30
	}
	if c.Scheduler.BackoffFactor < 1 {
		c.Scheduler.BackoffFactor = 2.0
	}
	if c.Scheduler.BackoffMaxSec <= 0 {
		c.Scheduler.BackoffMaxSec = 900
	}
	if c.Scheduler.MaxAttempts <= 0 {
		c.Scheduler.MaxAttempts = 10
	}
	if c.Scheduler.StuckSubmittedSec <= 0 {
		c.Scheduler.StuckSubmittedSec = 300
	}
	c.Scheduler.ScanInterval = time.Duration(c.Scheduler.ScanIntervalSec) * time.Second
	c.Scheduler.BackoffBase = time.Duration(c.Scheduler.BackoffBaseSec) * time.Second
	c.Scheduler.BackoffMax = time.Duration(c.Scheduler.BackoffMaxSec) * time.Second
	c.Scheduler.StuckSubmitted = time.Duration(c.Scheduler.StuckSubmittedSec) * time.Second

	if c.Callback.OrphanRetentionSec <= 0 {
		c.Callback.OrphanRetentionSec = 900
	}
	c.Callback.OrphanRetention = time.Duration(c.Callback.OrphanRetentionSec) * time.Second

	if c.Notify.MaxRetry <= 0 {
		c.Notify.MaxRetry = 3
	}
	if c.Notify.TimeoutSec <= 0 {
		c.Notify.TimeoutSec = 10
	}

	for i := range c.Channels {
		if c.Channels[i].TimeoutSec <= 0 {
			c.Channels[i].TimeoutSec = 15
		}
		c.Channels[i].Timeout = time.Duration(c.Channels[i].TimeoutSec) * time.Second
	}
}
