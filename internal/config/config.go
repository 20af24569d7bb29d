package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverLog   = "log"
	DriverBrevo = "brevo"
	DriverKafka = "kafka"
	DriverAll   = "all" // brevo and kafka
)

type AppCfg struct {
	Env             string        `mapstructure:"env"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     string        `mapstructure:"cors_origins"`
}

type MongoCfg struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

type RedisCfg struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTCfg struct {
	Algorithm      string        `mapstructure:"algorithm"`
	Secret         string        `mapstructure:"secret"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
}

type SecurityCfg struct {
	OTPTTL              time.Duration `mapstructure:"otp_ttl"`
	ResetTokenTTL       time.Duration `mapstructure:"reset_ttl"`
	BcryptCost          int           `mapstructure:"bcrypt_cost"`
	MinPasswordLength   int           `mapstructure:"min_password_len"`
	OTPMaxAttempts      int           `mapstructure:"otp_max_attempts"`
	OTPRequestsPerHour  int           `mapstructure:"otp_requests_per_hour"`
	AttemptsPerHour     int           `mapstructure:"attempts_per_hour"`
	IPRequestsPerMinute int           `mapstructure:"ip_requests_per_minute"`
}

type BrevoCfg struct {
	APIKey      string `mapstructure:"api_key"`
	SenderEmail string `mapstructure:"sender_email"`
	SenderName  string `mapstructure:"sender_name"`
	ResetURL    string `mapstructure:"reset_url"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type NotifyCfg struct {
	Driver string   `mapstructure:"driver"`
	Brevo  BrevoCfg `mapstructure:"brevo"`
	Kafka  KafkaCfg `mapstructure:"kafka"`
}

type JobsCfg struct {
	PurgeEnabled  bool          `mapstructure:"purge_enabled"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type BootstrapCfg struct {
	SuperadminEmail    string `mapstructure:"superadmin_email"`
	SuperadminPassword string `mapstructure:"superadmin_password"`
}

type Config struct {
	App       AppCfg       `mapstructure:"app"`
	Mongo     MongoCfg     `mapstructure:"mongo"`
	Redis     RedisCfg     `mapstructure:"redis"`
	JWT       JWTCfg       `mapstructure:"jwt"`
	Security  SecurityCfg  `mapstructure:"security"`
	Notify    NotifyCfg    `mapstructure:"notify"`
	Jobs      JobsCfg      `mapstructure:"jobs"`
	Bootstrap BootstrapCfg `mapstructure:"bootstrap"`
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Load reads the YAML file at path, then applies environment overrides such as
// MONGO_URI or JWT_SECRET. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Notify.Kafka.Brokers = splitList(cfg.Notify.Kafka.Brokers)
	cfg.JWT.Algorithm = strings.ToUpper(strings.TrimSpace(cfg.JWT.Algorithm))
	cfg.Notify.Driver = strings.ToLower(strings.TrimSpace(cfg.Notify.Driver))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.read_timeout", "15s")
	v.SetDefault("app.write_timeout", "15s")
	v.SetDefault("app.idle_timeout", "60s")
	v.SetDefault("app.shutdown_timeout", "10s")
	v.SetDefault("app.cors_origins", "*")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "placement")
	v.SetDefault("mongo.collection", "accounts")
	v.SetDefault("mongo.connect_timeout", "15s")
	v.SetDefault("mongo.max_pool_size", 50)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.private_key_path", "")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.issuer", "placement-service")
	v.SetDefault("jwt.access_ttl", "24h")

	v.SetDefault("security.otp_ttl", "10m")
	v.SetDefault("security.reset_ttl", "1h")
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.min_password_len", 8)
	v.SetDefault("security.otp_max_attempts", 5)
	v.SetDefault("security.otp_requests_per_hour", 5)
	v.SetDefault("security.attempts_per_hour", 20)
	v.SetDefault("security.ip_requests_per_minute", 60)

	v.SetDefault("notify.driver", DriverLog)
	v.SetDefault("notify.brevo.api_key", "")
	v.SetDefault("notify.brevo.sender_email", "")
	v.SetDefault("notify.brevo.sender_name", "Placement Portal")
	v.SetDefault("notify.brevo.reset_url", "")
	v.SetDefault("notify.kafka.brokers", []string{})
	v.SetDefault("notify.kafka.topic", "account-notifications")

	v.SetDefault("jobs.purge_enabled", true)
	v.SetDefault("jobs.purge_interval", "15m")

	v.SetDefault("bootstrap.superadmin_email", "")
	v.SetDefault("bootstrap.superadmin_password", "")
}

func (c *Config) validate() error {
	if c.Mongo.URI == "" {
		return errors.New("MONGO_URI is required")
	}
	if c.App.Port <= 0 {
		return fmt.Errorf("invalid app port %d", c.App.Port)
	}

	switch c.JWT.Algorithm {
	case "HS256":
		if len(c.JWT.Secret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters")
		}
	case "RS256":
		if c.JWT.PrivateKeyPath == "" {
			return errors.New("JWT_PRIVATE_KEY_PATH is required for RS256")
		}
	default:
		return fmt.Errorf("unsupported jwt algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access_ttl must be positive")
	}

	if c.Security.OTPTTL <= 0 || c.Security.ResetTokenTTL <= 0 {
		return errors.New("security otp_ttl and reset_ttl must be positive")
	}
	if c.Security.OTPMaxAttempts < 1 {
		return errors.New("security otp_max_attempts must be at least 1")
	}
	if c.Security.MinPasswordLength < 6 {
		return errors.New("security min_password_len must be at least 6")
	}

	switch c.Notify.Driver {
	case DriverLog:
	case DriverBrevo, DriverKafka, DriverAll:
		if c.Notify.Driver != DriverKafka && (c.Notify.Brevo.APIKey == "" || c.Notify.Brevo.SenderEmail == "") {
			return errors.New("brevo notifier requires api_key and sender_email")
		}
		if c.Notify.Driver != DriverBrevo && (len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "") {
			return errors.New("kafka notifier requires brokers and topic")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}

	if (c.Bootstrap.SuperadminEmail == "") != (c.Bootstrap.SuperadminPassword == "") {
		return errors.New("bootstrap superadmin_email and superadmin_password must be set together")
	}
	if c.Jobs.PurgeEnabled && c.Jobs.PurgeInterval <= 0 {
		return errors.New("jobs purge_interval must be positive")
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
