package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AMQP     AMQPConfig
	Match    MatchConfig
	Keyword  KeywordConfig
	LogLevel string
}

type ServerConfig struct {
	Addr      string
	JWTSecret string
	RateLimit float64 // 认领提交每秒请求数
	Burst     int
}

type DatabaseConfig struct {
	Driver string // sqlite 或 mysql
	DSN    string
}

// AMQPConfig URL 为空时不推送通知事件
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type MatchConfig struct {
	Threshold float64
}

type KeywordConfig struct {
	Enabled bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8888")
	v.SetDefault("server.jwtsecret", "")
	v.SetDefault("server.ratelimit", 5)
	v.SetDefault("server.burst", 10)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "lostfound")
	v.SetDefault("amqp.routingkey", "notification")
	v.SetDefault("match.threshold", 0.3)
	v.SetDefault("keyword.enabled", true)
	v.SetDefault("loglevel", "info")
}

// Load 读取当前目录下的 config.yaml, 文件不存在时只使用默认值和环境变量 (LOSTFOUND_SERVER_ADDR 等)
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.yaml")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("LOSTFOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("server.jwtsecret is required")
	}
	return cfg, nil
}
