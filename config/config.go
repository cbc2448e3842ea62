package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Database DatabaseConfig        `mapstructure:"database"`
	Redis    RedisConfig           `mapstructure:"redis"`
	JWT      JWTConfig             `mapstructure:"jwt"`
	Stripe   StripeConfig          `mapstructure:"stripe"`
	Identity IdentityConfig        `mapstructure:"identity"`
	OSS      OSSConfig             `mapstructure:"oss"`
	CORS     CORSConfig            `mapstructure:"cors"`
	Plans    map[string]PlanConfig `mapstructure:"plans"`
	Resync   ResyncConfig          `mapstructure:"resync"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PortalURL     string `mapstructure:"portal_url"`
}

type IdentityConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ServiceKey     string `mapstructure:"service_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PlanConfig 付费套餐配置，price_id 对应 Stripe 上的价格标识
type PlanConfig struct {
	PriceID     string `mapstructure:"price_id"`
	DisplayName string `mapstructure:"display_name"`
}

type ResyncConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
}

// TierForPriceID 根据 Stripe 价格标识反查套餐等级
func (c *Config) TierForPriceID(priceID string) (string, bool) {
	if priceID == "" {
		return "", false
	}
	for tier, plan := range c.Plans {
		if plan.PriceID == priceID {
			return tier, true
		}
	}
	return "", false
}

// IsValidTier 检查套餐等级是否在闭集内（free 或已配置的付费套餐）
func (c *Config) IsValidTier(tier string) bool {
	if tier == "free" {
		return true
	}
	_, ok := c.Plans[tier]
	return ok
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
