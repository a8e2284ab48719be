package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Reservation ReservationConfig
	Order       OrderConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// ReservationConfig carries the two-tier hold TTLs and the sweeper
// cadence. The sweep interval should stay at or below a third of the
// shortest TTL so abandoned holds are reclaimed promptly.
type ReservationConfig struct {
	CartTTL       time.Duration
	CheckoutTTL   time.Duration
	SweepInterval time.Duration
}

// OrderConfig carries the payment window for pending orders and the
// flat shipping fee in minor currency units.
type OrderConfig struct {
	PaymentTTL  time.Duration
	ShippingFee int64
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CART_TTL_MINUTES", 15)
	viper.SetDefault("CHECKOUT_TTL_MINUTES", 30)
	viper.SetDefault("SWEEP_INTERVAL_SECONDS", 30)
	viper.SetDefault("ORDER_PAYMENT_TTL_MINUTES", 30)
	viper.SetDefault("ORDER_SHIPPING_FEE", 0)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Reservation: ReservationConfig{
			CartTTL:       time.Duration(viper.GetInt("CART_TTL_MINUTES")) * time.Minute,
			CheckoutTTL:   time.Duration(viper.GetInt("CHECKOUT_TTL_MINUTES")) * time.Minute,
			SweepInterval: time.Duration(viper.GetInt("SWEEP_INTERVAL_SECONDS")) * time.Second,
		},
		Order: OrderConfig{
			PaymentTTL:  time.Duration(viper.GetInt("ORDER_PAYMENT_TTL_MINUTES")) * time.Minute,
			ShippingFee: viper.GetInt64("ORDER_SHIPPING_FEE"),
		},
	}
}
