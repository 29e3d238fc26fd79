package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Orders  OrdersConfig  `mapstructure:"orders"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig addresses the gRPC health endpoint of the storefront.
type ServerConfig struct {
	Name          string        `mapstructure:"name"`
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MySQLConfig points at the stock ledger database. An empty host disables the ledger.
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	// Driver is "mongo" or "memory".
	Driver       string `mapstructure:"driver"`
	URI          string `mapstructure:"uri"`
	Database     string `mapstructure:"database"`
	Transactions bool   `mapstructure:"transactions"`
}

type GatewayConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type OrdersConfig struct {
	HonorBackorders bool          `mapstructure:"honor_backorders"`
	TotalTolerance  float64       `mapstructure:"total_tolerance"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

type CacheConfig struct {
	ProductTTL time.Duration `mapstructure:"product_ttl"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "storefront")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.probe_interval", 10*time.Second)

	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)

	v.SetDefault("mongodb.driver", "mongo")
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "ecommerce")
	v.SetDefault("mongodb.transactions", true)

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 5000)
	v.SetDefault("gateway.shutdown_timeout", 10*time.Second)

	v.SetDefault("orders.honor_backorders", false)
	v.SetDefault("orders.total_tolerance", 0.01)
	v.SetDefault("orders.idempotency_ttl", 24*time.Hour)

	v.SetDefault("cache.product_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.MongoDB.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown mongodb driver %q", c.MongoDB.Driver)
	}
	if c.Orders.TotalTolerance < 0 {
		return fmt.Errorf("orders.total_tolerance must not be negative")
	}
	return nil
}

func (c *MySQLConfig) Enabled() bool {
	return c.Host != ""
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c *EtcdConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}
