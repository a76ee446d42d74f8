package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	Store    StoreConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Dialog   DialogConfig
	Dispatch DispatchConfig
	Log      LogConfig
	LockTTL  time.Duration
}

type StoreConfig struct {
	Driver    string
	BadgerDir string
	MySQLDSN  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GatewayConfig struct {
	Driver  string
	Timeout time.Duration

	ATUsername  string
	ATAPIKey    string
	ATEnv       string
	ATShortcode string
	ATSenderID  string
	ATBaseURL   string

	NATSURL     string
	NATSSubject string
}

type DialogConfig struct {
	CancelWindow    time.Duration
	DeliveryFee     decimal.Decimal
	TrackingBaseURL string
}

type DispatchConfig struct {
	Workers       int
	QueueSize     int
	RatePerSecond float64
	Burst         int
}

type LogConfig struct {
	Level string
	File  string
}

var defaults = map[string]interface{}{
	"http.addr":                ":8080",
	"grpc.addr":                ":50051",
	"store.driver":             "badger",
	"store.badger_dir":         "./data",
	"store.mysql_dsn":          "",
	"redis.addr":               "",
	"redis.password":           "",
	"redis.db":                 0,
	"gateway.driver":           "auto",
	"gateway.timeout":          "10s",
	"at.username":              "",
	"at.api_key":               "",
	"at.env":                   "sandbox",
	"at.shortcode":             "",
	"at.sender_id":             "",
	"at.base_url":              "",
	"nats.url":                 "",
	"nats.subject":             "pricechek.sms.outbound",
	"dialog.cancel_window":     "5m",
	"dialog.delivery_fee":      "150",
	"dialog.tracking_base_url": "https://pricechekrider.co.ke/track",
	"dispatch.workers":         4,
	"dispatch.queue_size":      1000,
	"dispatch.rate_per_second": 10.0,
	"dispatch.burst":           5,
	"log.level":                "info",
	"log.file":                 "",
	"lock.ttl":                 "5s",
}

// Load layers defaults, an optional config file and the environment, with
// the environment winning. A .env file in the working directory is loaded
// into the environment first. Env names are the keys upper-cased with dots
// replaced by underscores, e.g. AT_API_KEY.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	fee, err := decimal.NewFromString(v.GetString("dialog.delivery_fee"))
	if err != nil {
		return Config{}, fmt.Errorf("parse dialog.delivery_fee: %w", err)
	}

	cfg := Config{
		HTTPAddr: v.GetString("http.addr"),
		GRPCAddr: v.GetString("grpc.addr"),
		Store: StoreConfig{
			Driver:    strings.ToLower(v.GetString("store.driver")),
			BadgerDir: v.GetString("store.badger_dir"),
			MySQLDSN:  v.GetString("store.mysql_dsn"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Gateway: GatewayConfig{
			Driver:      strings.ToLower(v.GetString("gateway.driver")),
			Timeout:     v.GetDuration("gateway.timeout"),
			ATUsername:  v.GetString("at.username"),
			ATAPIKey:    v.GetString("at.api_key"),
			ATEnv:       strings.ToLower(v.GetString("at.env")),
			ATShortcode: v.GetString("at.shortcode"),
			ATSenderID:  v.GetString("at.sender_id"),
			ATBaseURL:   v.GetString("at.base_url"),
			NATSURL:     v.GetString("nats.url"),
			NATSSubject: v.GetString("nats.subject"),
		},
		Dialog: DialogConfig{
			CancelWindow:    v.GetDuration("dialog.cancel_window"),
			DeliveryFee:     fee,
			TrackingBaseURL: v.GetString("dialog.tracking_base_url"),
		},
		Dispatch: DispatchConfig{
			Workers:       v.GetInt("dispatch.workers"),
			QueueSize:     v.GetInt("dispatch.queue_size"),
			RatePerSecond: v.GetFloat64("dispatch.rate_per_second"),
			Burst:         v.GetInt("dispatch.burst"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		LockTTL: v.GetDuration("lock.ttl"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "badger":
		if c.Store.BadgerDir == "" {
			return errors.New("store.badger_dir is required for the badger driver")
		}
	case "mysql":
		if c.Store.MySQLDSN == "" {
			return errors.New("store.mysql_dsn is required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Gateway.Driver {
	case "auto", "log", "nats", "africastalking":
	default:
		return fmt.Errorf("unknown gateway.driver %q", c.Gateway.Driver)
	}
	if c.Gateway.Driver == "africastalking" && (c.Gateway.ATUsername == "" || c.Gateway.ATAPIKey == "") {
		return errors.New("at.username and at.api_key are required for the africastalking driver")
	}
	if c.Gateway.Driver == "nats" && c.Gateway.NATSURL == "" {
		return errors.New("nats.url is required for the nats driver")
	}
	switch c.Gateway.ATEnv {
	case "sandbox", "production", "techtribe":
	default:
		return fmt.Errorf("unknown at.env %q", c.Gateway.ATEnv)
	}

	if c.Dispatch.Workers <= 0 {
		return errors.New("dispatch.workers must be positive")
	}
	if c.Dispatch.QueueSize <= 0 {
		return errors.New("dispatch.queue_size must be positive")
	}
	if c.Dispatch.RatePerSecond <= 0 {
		return errors.New("dispatch.rate_per_second must be positive")
	}
	if c.Dispatch.Burst <= 0 {
		return errors.New("dispatch.burst must be positive")
	}
	if c.Dialog.CancelWindow <= 0 {
		return errors.New("dialog.cancel_window must be positive")
	}
	if c.Dialog.DeliveryFee.IsNegative() {
		return errors.New("dialog.delivery_fee must not be negative")
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("gateway.timeout must be positive")
	}
	if c.LockTTL <= 0 {
		return errors.New("lock.ttl must be positive")
	}
	return nil
}
