package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Spok95/fbo-sync/internal/domain/supply"
	"github.com/Spok95/fbo-sync/internal/upsert"
)

// Cabinet — кабинет Ozon. Ключи можно не держать в файле:
// FBO_<NAME>_CLIENT_ID и FBO_<NAME>_API_KEY из окружения.
type Cabinet struct {
	Name           string `mapstructure:"name" validate:"required"`
	ClientID       string `mapstructure:"client_id" validate:"required"`
	APIKey         string `mapstructure:"api_key" validate:"required"`
	SalesChannelID string `mapstructure:"sales_channel_id" validate:"omitempty,msid"`
}

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Cabinets []Cabinet `mapstructure:"cabinets" validate:"required,min=1,dive"`

	Ozon struct {
		BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
		PageSize int    `mapstructure:"page_size" validate:"gte=1,lte=100"`
	} `mapstructure:"ozon"`

	MoySklad struct {
		Token              string `validate:"required"`
		BaseURL            string `mapstructure:"base_url" validate:"omitempty,url"`
		OrganizationID     string `mapstructure:"organization_id" validate:"required,msid"`
		AgentID            string `mapstructure:"agent_id" validate:"required,msid"`
		StateID            string `mapstructure:"state_id" validate:"omitempty,msid"`
		SourceStoreID      string `mapstructure:"source_store_id" validate:"required,msid"`
		DestinationStoreID string `mapstructure:"destination_store_id" validate:"required,msid"`
	} `mapstructure:"moysklad"`

	Sync struct {
		PlannedFrom    string        `mapstructure:"planned_from" validate:"omitempty,datetime=2006-01-02"`
		ExcludedOrders []int64       `mapstructure:"excluded_orders"`
		States         []string      `mapstructure:"states"`
		DryRun         bool          `mapstructure:"dry_run"`
		DedupPolicy    string        `mapstructure:"dedup_policy" validate:"omitempty,oneof=latest earliest"`
		ExpandMaxDepth int           `mapstructure:"expand_max_depth" validate:"gte=0,lte=5"`
		Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`
	} `mapstructure:"sync"`

	HTTPClient struct {
		Attempts int           `validate:"gte=1,lte=20"`
		Timeout  time.Duration `validate:"gt=0"`
	} `mapstructure:"http_client"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string
		Password string
		DB       int
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"redis"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
		Quiet       bool
	} `mapstructure:"telegram"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Europe/Moscow")
	v.SetDefault("ozon.base_url", "")
	v.SetDefault("ozon.page_size", 100)
	v.SetDefault("moysklad.token", "")
	v.SetDefault("moysklad.base_url", "")
	v.SetDefault("moysklad.organization_id", "")
	v.SetDefault("moysklad.agent_id", "")
	v.SetDefault("moysklad.state_id", "")
	v.SetDefault("moysklad.source_store_id", "")
	v.SetDefault("moysklad.destination_store_id", "")
	v.SetDefault("sync.planned_from", "")
	v.SetDefault("sync.dry_run", true)
	v.SetDefault("sync.dedup_policy", string(upsert.KeepLatest))
	v.SetDefault("sync.expand_max_depth", 2)
	v.SetDefault("sync.interval", 30*time.Minute)
	v.SetDefault("http_client.attempts", 6)
	v.SetDefault("http_client.timeout", 60*time.Second)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Minute)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.quiet", true)
	v.SetDefault("metrics.enabled", true)
}

// Load читает YAML (если путь задан), .env и переменные FBO_*.
// Пример: FBO_MOYSKLAD_TOKEN, FBO_SYNC_DRY_RUN=false.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FBO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	c.fillCabinetSecrets()

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) fillCabinetSecrets() {
	for i := range c.Cabinets {
		cab := &c.Cabinets[i]
		prefix := "FBO_" + strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(cab.Name)) + "_"
		if s := os.Getenv(prefix + "CLIENT_ID"); s != "" {
			cab.ClientID = s
		}
		if s := os.Getenv(prefix + "API_KEY"); s != "" {
			cab.APIKey = s
		}
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// id МойСклад — UUID
	_ = v.RegisterValidation("msid", func(fl validator.FieldLevel) bool {
		_, err := uuid.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate проверяет теги и разбирает производные значения.
func (c Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	seen := map[string]bool{}
	for _, cab := range c.Cabinets {
		if seen[cab.Name] {
			return fmt.Errorf("config: duplicate cabinet %q", cab.Name)
		}
		seen[cab.Name] = true
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.PlannedFrom(); err != nil {
		return err
	}
	if _, err := c.States(); err != nil {
		return err
	}
	if _, err := c.DedupPolicy(); err != nil {
		return err
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone: %w", err)
	}
	return loc, nil
}

// PlannedFrom — граница отбора: полночь даты в часовом поясе приложения. Нулевое время, если не задана.
func (c Config) PlannedFrom() (time.Time, error) {
	if c.Sync.PlannedFrom == "" {
		return time.Time{}, nil
	}
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(time.DateOnly, c.Sync.PlannedFrom, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: planned_from: %w", err)
	}
	return t, nil
}

// States — состояния заявок для выборки; nil означает набор по умолчанию.
func (c Config) States() ([]supply.State, error) {
	if len(c.Sync.States) == 0 {
		return nil, nil
	}
	out := make([]supply.State, 0, len(c.Sync.States))
	for _, s := range c.Sync.States {
		st, ok := supply.ParseState(s)
		if !ok {
			return nil, fmt.Errorf("config: unknown supply state %q", s)
		}
		out = append(out, st)
	}
	return out, nil
}

func (c Config) DedupPolicy() (upsert.Policy, error) {
	return upsert.ParsePolicy(c.Sync.DedupPolicy)
}

// Cabinet ищет кабинет по имени.
func (c Config) Cabinet(name string) (Cabinet, bool) {
	for _, cab := range c.Cabinets {
		if cab.Name == name {
			return cab, true
		}
	}
	return Cabinet{}, false
}
