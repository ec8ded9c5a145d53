package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

//go:embed config.yml
var embeddedConfig []byte

const envPrefix = "USERS"

// developmentSecretKey is the jwt.secretKey shipped in config.yml. It is only
// accepted in development mode.
const developmentSecretKey = "change-me-in-production-this-is-32-bytes"

// JWTConfig holds the token signing settings shared by the issuer and the auth gate.
type JWTConfig struct {
	SecretKey string        `mapstructure:"secretKey"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	BcryptCost int `mapstructure:"bcryptCost"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	Password          string `mapstructure:"password"`
	Port              string `mapstructure:"port"`
	Username          string `mapstructure:"username"`
	DB                string `mapstructure:"db"`
	SSLMODE           string `mapstructure:"SSLMODE"`
	MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
	MaxConns          int32  `mapstructure:"maxConns"`
}

type ServerConfig struct {
	HTTPPort        string        `mapstructure:"HTTPPort"`
	Timeout         time.Duration `mapstructure:"HTTPTimeout"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"serviceName"`
	MetricsPort string `mapstructure:"metricsPort"`
}

// Config is built once at startup and shared read-only afterwards.
type Config struct {
	Mode         string `mapstructure:"mode"`
	Dotenv       string `mapstructure:"dotenv"`
	Repositories struct {
		Postgres PostgresConfig `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server        ServerConfig        `mapstructure:"server"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Auth          AuthConfig          `mapstructure:"auth"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// USERS_JWT_SECRETKEY overrides jwt.secretKey, and so on.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Mode == "" || c.Mode == "development"
}

func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.JWT),
		validation.Field(&c.Auth),
		validation.Field(&c.Server),
	); err != nil {
		return err
	}
	if c.IsDevelopment() {
		return nil
	}
	return validation.Errors{
		"jwt.secretKey": validation.Validate(c.JWT.SecretKey,
			validation.NotIn(developmentSecretKey).Error("must be overridden outside development mode")),
	}.Filter()
}

func (j JWTConfig) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.SecretKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&j.Issuer, validation.Required),
		validation.Field(&j.Audience, validation.Required),
		validation.Field(&j.TTL, validation.Required, validation.Min(time.Second)),
	)
}

func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.BcryptCost, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.HTTPPort, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.Required),
	)
}
