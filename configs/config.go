package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Tenant is one marketplace tenant. Each tenant sells in its own display
// currency and carries its own hosted-provider merchant credentials.
type Tenant struct {
	ID           string   `koanf:"id"`
	Currency     string   `koanf:"currency"`
	Multiplier   float64  `koanf:"multiplier"`
	Hosts        []string `koanf:"hosts"`
	MerchantID   string   `koanf:"merchant_id"`
	MerchantKey  string   `koanf:"merchant_key"`
	MerchantSalt string   `koanf:"merchant_salt"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
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

	Cache struct {
		StatusTTL time.Duration `koanf:"status_ttl"`
		RateTTL   time.Duration `koanf:"rate_ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RetryQueue string `koanf:"retry_queue"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers    []string `koanf:"brokers"`
		RatesTopic string   `koanf:"rates_topic"`
		GroupID    string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Vault struct {
		KeyID     string `koanf:"key_id"`
		AES256B64 string `koanf:"aes256_b64url"`
	} `koanf:"vault"`

	Balance struct {
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"balance"`

	Pricing struct {
		// BaseCurrency is the reference currency catalog prices are stored in.
		BaseCurrency string `koanf:"base_currency"`
	} `koanf:"pricing"`

	Providers struct {
		Paddle struct {
			WebhookSecret string `koanf:"webhook_secret"`
			Strict        bool   `koanf:"strict"`
		} `koanf:"paddle"`
		PayTR struct {
			Strict bool `koanf:"strict"`
		} `koanf:"paytr"`
	} `koanf:"providers"`

	Tenants []Tenant `koanf:"tenants"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix GUMRUK360_, nested with __)
	// e.g. GUMRUK360_MYSQL__DSN, GUMRUK360_PROVIDERS__PADDLE__WEBHOOK_SECRET
	if err := k.Load(env.Provider("GUMRUK360_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "GUMRUK360_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Pricing.BaseCurrency == "" {
		return fmt.Errorf("pricing.base_currency required")
	}
	for _, t := range c.Tenants {
		if t.ID == "" || t.Currency == "" {
			return fmt.Errorf("tenant entries need id and currency")
		}
	}
	return nil
}

// TenantByID returns the tenant config for an explicit tenant hint.
func (c Config) TenantByID(id string) (Tenant, bool) {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return Tenant{}, false
}

// TenantByHost maps an inbound request host to a tenant. Fallback when no
// explicit user-tenant association is known.
func (c Config) TenantByHost(host string) (Tenant, bool) {
	host = strings.ToLower(host)
	for _, t := range c.Tenants {
		for _, h := range t.Hosts {
			if strings.ToLower(h) == host {
				return t, true
			}
		}
	}
	return Tenant{}, false
}

// TenantByMerchantID matches a hosted-provider merchant identifier against
// the registry. Used by the paytr callback when no tenant hint is present.
func (c Config) TenantByMerchantID(merchantID string) (Tenant, bool) {
	for _, t := range c.Tenants {
		if t.MerchantID != "" && t.MerchantID == merchantID {
			return t, true
		}
	}
	return Tenant{}, false
}
