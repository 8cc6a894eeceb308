package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/quickdash/order-api/internal/pricing"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cart struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cart"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers   []string `koanf:"brokers"`
		FeedTopic string   `koanf:"feed_topic"`
		GroupID   string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Payment struct {
		BaseURL         string        `koanf:"base_url"`
		SecretKey       string        `koanf:"secret_key"`
		WebhookSecret   string        `koanf:"webhook_secret"`
		Timeout         time.Duration `koanf:"timeout"`
		PollInterval    time.Duration `koanf:"poll_interval"`
		PollMaxAttempts int           `koanf:"poll_max_attempts"`
	} `koanf:"payment"`

	// Pricing is filled from the delivery_* key set, not unmarshalled
	// directly: the legacy nested shapes need normalizing first.
	Pricing pricing.Config `koanf:"-"`
}

// Admin-owned pricing keys. Older deployments stored some of these as
// nested objects ({km: n} or {value: n}); the reader tolerates both.
const (
	keyBaseRate      = "pricing.delivery_base_rate"
	keyThresholdKm   = "pricing.delivery_threshold_km"
	keyExtendedPrice = "pricing.delivery_extended_price"
	keyMaxDistanceKm = "pricing.max_delivery_distance_km"
)

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env overlay (dev/staging/prod). Optional for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix MKT_, nested with __)
	// e.g. MKT_MYSQL__DSN, MKT_PAYMENT__SECRET_KEY
	if err := k.Load(env.Provider("MKT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "MKT_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg.Pricing = pricing.Config{
		BaseRate:           numericKey(k, keyBaseRate),
		ThresholdKm:        numericKey(k, keyThresholdKm),
		ExtendedPricePerKm: numericKey(k, keyExtendedPrice),
		MaxDistanceKm:      numericKey(k, keyMaxDistanceKm),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// numericKey reads a pricing value that may be a plain number or a legacy
// nested object ({km: n} / {value: n}). Unexpected shapes normalize to 0
// here at the edge rather than leaking into business logic.
func numericKey(k *koanf.Koanf, key string) float64 {
	switch v := k.Get(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case map[string]any:
		for _, nested := range []string{"km", "value"} {
			switch n := v[nested].(type) {
			case float64:
				return n
			case int:
				return float64(n)
			}
		}
	}
	return 0
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required")
	}
	if c.Pricing.BaseRate < 0 || c.Pricing.MaxDistanceKm < 0 {
		return fmt.Errorf("pricing keys must be non-negative")
	}
	return nil
}
