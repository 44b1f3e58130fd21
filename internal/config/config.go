package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/loop_scanner/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceStream = "stream"
)

type Config struct {
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Scan struct {
		Schedule string        `yaml:"schedule"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"scan"`
	Sources   []SourceConfig   `yaml:"sources"`
	Policy    domain.Policy    `yaml:"policy"`
	Fallbacks domain.Fallbacks `yaml:"fallbacks"`
	Platforms struct {
		Aliases domain.PlatformAliases `yaml:"aliases"`
	} `yaml:"platforms"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type SourceConfig struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	Path      string        `yaml:"path"`
	URL       string        `yaml:"url"`
	Subscribe string        `yaml:"subscribe"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type TelegramConfig struct {
	Token     string  `yaml:"token"`
	ChatID    int64   `yaml:"chat_id"`
	TopN      int     `yaml:"top_n"`
	MinNetAPY float64 `yaml:"min_net_apy"`
}

func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

// Default returns a config that scans nothing but is otherwise complete.
// Fallback tables hold the yields and LTVs feeds commonly leave blank.
func Default() *Config {
	cfg := &Config{
		Policy: domain.DefaultPolicy(),
		Fallbacks: domain.Fallbacks{
			Underlying: map[string]float64{
				"ONyc":      13.35,
				"syrupUSDC": 5.86,
				"PST":       9.0,
				"eUSX":      4.5,
			},
			LTV: map[string]float64{
				"ONyc":      50,
				"syrupUSDC": 88,
				"PST":       75,
				"eUSX":      75,
				"USDC":      80,
				"USDT":      80,
				"PYUSD":     80,
				"USDG":      80,
				"USDS":      80,
				"EURC":      0,
				"CASH":      0,
				"USX":       80,
			},
			SupplyOnly: []string{"syrupUSDC", "ONyc", "PST", "eUSX", "PT-eUSX-11MAR26", "PT-USX-09FEB26"},
		},
	}
	cfg.Logging.Level = "info"
	cfg.Storage.Path = "loops.db"
	cfg.Server.Port = 8080
	cfg.Scan.Schedule = "@every 15m"
	cfg.Scan.Timeout = time.Minute
	cfg.Platforms.Aliases = domain.DefaultPlatformAliases()
	cfg.Telegram.TopN = 5
	return cfg
}

// Load reads path over the defaults, then applies .env and LOOPSCAN_*
// environment overrides. Map entries in the file are merged into the
// default tables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOOPSCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOOPSCAN_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LOOPSCAN_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("LOOPSCAN_TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid LOOPSCAN_TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source #%d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true

		switch s.Type {
		case SourceFile:
			if s.Path == "" {
				return fmt.Errorf("source %q: file source needs a path", s.Name)
			}
		case SourceHTTP, SourceStream:
			if s.URL == "" {
				return fmt.Errorf("source %q: %s source needs a url", s.Name, s.Type)
			}
		default:
			return fmt.Errorf("source %q: unknown type %q", s.Name, s.Type)
		}
	}

	for token, ltv := range c.Fallbacks.LTV {
		if ltv < 0 || ltv >= 100 {
			return fmt.Errorf("fallbacks: ltv for %s must be in [0, 100), got %v", token, ltv)
		}
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return errors.New("telegram: chat_id is required when a token is set")
	}
	return nil
}
