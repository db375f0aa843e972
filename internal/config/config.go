package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port int `envconfig:"PORT" default:"8080"`
	// DatabaseURL selects the PostgreSQL store. When empty, snapshots go to
	// the SQLite file at SQLitePath.
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"./data/orimap.db"`
	TemplateDir    string `envconfig:"TEMPLATE_DIR" default:"./data/templates"`
	SymbolSet      string `envconfig:"SYMBOL_SET"`
	UndoLimit      int    `envconfig:"UNDO_LIMIT" default:"200"`
	SessionSecret  string `envconfig:"SESSION_SECRET" default:"dev-secret-change-in-production"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins returns the allowed origins as a list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginHosts returns the allowed origins without scheme, the form
// websocket origin checks expect.
func (c *Config) OriginHosts() []string {
	origins := c.Origins()
	hosts := make([]string, len(origins))
	for i, o := range origins {
		if _, rest, ok := strings.Cut(o, "://"); ok {
			o = rest
		}
		hosts[i] = o
	}
	return hosts
}
