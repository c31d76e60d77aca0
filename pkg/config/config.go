package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Log    LogConfig
	Chat   ChatConfig
	Media  MediaConfig
}

type ServerConfig struct {
	Address         string        `validate:"required"`
	Mode            string        `validate:"omitempty,oneof=debug release test"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DBConfig struct {
	Driver        string `validate:"required,oneof=postgres sqlite"`
	Host          string `validate:"required_if=Driver postgres"`
	User          string
	Password      string
	Name          string `validate:"required_if=Driver postgres"`
	Port          int
	Path          string `validate:"required_if=Driver sqlite"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type JWTConfig struct {
	Secret      string `validate:"required,min=16"`
	ExpireHours int    `mapstructure:"expire_hours" validate:"gt=0"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// ChatConfig 聊天子系統的設定
type ChatConfig struct {
	Broker      string `validate:"required,oneof=memory redis nats"`
	RedisURL    string `mapstructure:"redis_url" validate:"required_if=Broker redis"`
	NatsURL     string `mapstructure:"nats_url" validate:"required_if=Broker nats"`
	PageSize    int    `mapstructure:"page_size" validate:"gt=0,lte=100"`
	MaxPageSize int    `mapstructure:"max_page_size" validate:"gtefield=PageSize,lte=100"`
	SendBuffer  int    `mapstructure:"send_buffer" validate:"gt=0"`
}

type MediaConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load 從 ./pkg/config/config.yaml 與環境變數載入設定
func Load() (*Config, error) {
	// .env 只在開發環境存在，找不到時忽略
	_ = godotenv.Load()
	return LoadFrom("./pkg/config", "config")
}

// LoadFrom 從指定目錄讀取設定檔，環境變數 TRIPLINK_* 會覆蓋檔案中的值
func LoadFrom(path, name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	setDefaults(v)

	v.SetEnvPrefix("TRIPLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.port", 5432)
	v.SetDefault("jwt.expire_hours", 240)
	v.SetDefault("log.level", "info")
	v.SetDefault("chat.broker", "memory")
	v.SetDefault("chat.page_size", 30)
	v.SetDefault("chat.max_page_size", 100)
	v.SetDefault("chat.send_buffer", 256)

	// 沒有預設值的鍵需要明確綁定，否則 Unmarshal 不會讀到環境變數
	for _, key := range []string{
		"db.host", "db.user", "db.password", "db.name", "db.path", "db.migrations_dir",
		"jwt.secret", "chat.redis_url", "chat.nats_url", "media.base_url",
	} {
		_ = v.BindEnv(key)
	}
}

// Expiry 回傳 token 的有效期限
func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpireHours) * time.Hour
}
