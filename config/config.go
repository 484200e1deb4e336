package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	PLATFORM_INSTAGRAM = "instagram"
	PLATFORM_WHATSAPP  = "whatsapp"

	JOURNAL_NONE     = "none"
	JOURNAL_DATABASE = "database"
	JOURNAL_REDIS    = "redis"
)

// Configuration is read once at startup and injected into every component
// that needs it. Nothing below main looks at the environment.
type Configuration struct {
	ApiPort  string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	OpenAI struct {
		APIKey  string `env:"OPENAI_API_KEY,required,notEmpty"`
		BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
		Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	}

	Graph struct {
		PageAccessToken string `env:"PAGE_ACCESS_TOKEN,required,notEmpty"`
		BaseURL         string `env:"GRAPH_BASE_URL" envDefault:"https://graph.facebook.com"`
		ApiVersion      string `env:"GRAPH_API_VERSION" envDefault:"v20.0"`
		Platform        string `env:"MESSAGING_PLATFORM" envDefault:"instagram"`
		PhoneNumberID   string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	}

	Webhook struct {
		VerifyToken string `env:"VERIFY_TOKEN,required,notEmpty"`
		AppSecret   string `env:"APP_SECRET"` // habilita X-Hub-Signature-256
	}

	PersonaFile     string        `env:"PERSONA_FILE"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`

	Journal struct {
		Backend       string        `env:"JOURNAL" envDefault:"none"`
		Database      string        `env:"DATABASE" envDefault:"sqlite3"`
		DatabaseDSN   string        `env:"DATABASE_DSN" envDefault:"db/relay.db"`
		RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
		RedisStream   string        `env:"REDIS_STREAM" envDefault:"relay:events"`
		Retention     time.Duration `env:"JOURNAL_RETENTION" envDefault:"720h"`
		PruneSchedule string        `env:"JOURNAL_PRUNE_SCHEDULE" envDefault:"0 3 * * *"`
	}

	AdminToken         string   `env:"ADMIN_TOKEN"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env (when present) and the process environment.
func Load() (Configuration, error) {
	_ = godotenv.Load()

	var c Configuration
	if err := env.Parse(&c); err != nil {
		return Configuration{}, fmt.Errorf("config: %w", err)
	}
	if err := c.normalize(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

func (c *Configuration) normalize() error {
	c.Graph.Platform = strings.ToLower(strings.TrimSpace(c.Graph.Platform))
	switch c.Graph.Platform {
	case PLATFORM_INSTAGRAM:
	case PLATFORM_WHATSAPP:
		if strings.TrimSpace(c.Graph.PhoneNumberID) == "" {
			return fmt.Errorf("config: WHATSAPP_PHONE_NUMBER_ID is required when MESSAGING_PLATFORM=whatsapp")
		}
	default:
		return fmt.Errorf("config: unknown MESSAGING_PLATFORM %q", c.Graph.Platform)
	}

	c.Journal.Backend = strings.ToLower(strings.TrimSpace(c.Journal.Backend))
	switch c.Journal.Backend {
	case JOURNAL_NONE, JOURNAL_DATABASE, JOURNAL_REDIS:
	default:
		return fmt.Errorf("config: unknown JOURNAL %q", c.Journal.Backend)
	}

	if c.Journal.Backend == JOURNAL_DATABASE && !gronx.New().IsValid(c.Journal.PruneSchedule) {
		return fmt.Errorf("config: invalid JOURNAL_PRUNE_SCHEDULE %q", c.Journal.PruneSchedule)
	}

	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 30 * time.Second
	}
	return nil
}

func (c Configuration) IsDevelopment() bool {
	return c.Env == "development"
}

// AdminEnabled reports whether the journal listing endpoints are exposed.
func (c Configuration) AdminEnabled() bool {
	return strings.TrimSpace(c.AdminToken) != "" && c.Journal.Backend == JOURNAL_DATABASE
}
