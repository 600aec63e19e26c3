package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/rustyeddy/tradequeue/risk"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the configuration shared by the producer and the worker.
type Config struct {
	Queue   QueueConfig   `json:"queue" yaml:"queue"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Status  StatusConfig  `json:"status" yaml:"status"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Worker  WorkerConfig  `json:"worker" yaml:"worker"`
	Venue   VenueConfig   `json:"venue" yaml:"venue"`
	Symbol  SymbolConfig  `json:"symbol" yaml:"symbol"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`

	// Instruments adds to or overrides the built-in instrument table,
	// keyed by base code.
	Instruments map[string]InstrumentConfig `json:"instruments,omitempty" yaml:"instruments,omitempty"`
}

type QueueConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

type JournalConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

type NotifyConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// StatusConfig is the worker's read-only HTTP endpoint. Empty Addr
// disables it.
type StatusConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// WorkerConfig durations are strings such as "1s" or "2m".
type WorkerConfig struct {
	ID                  string `json:"id,omitempty" yaml:"id,omitempty"` // defaults to the hostname
	PollInterval        string `json:"poll_interval" yaml:"poll_interval"`
	HealthInterval      string `json:"health_interval" yaml:"health_interval"`
	VenueTimeout        string `json:"venue_timeout" yaml:"venue_timeout"`
	ClaimLease          string `json:"claim_lease" yaml:"claim_lease"`
	MaxRetries          int    `json:"max_retries" yaml:"max_retries"`
	ReconnectMaxElapsed string `json:"reconnect_max_elapsed" yaml:"reconnect_max_elapsed"`
}

// Durations are the parsed WorkerConfig intervals.
type Durations struct {
	Poll                time.Duration
	Health              time.Duration
	VenueTimeout        time.Duration
	ClaimLease          time.Duration
	ReconnectMaxElapsed time.Duration
}

// VenueConfig selects the execution venue. Secrets are read from the
// environment variables named here, never from the file.
type VenueConfig struct {
	Type         string  `json:"type" yaml:"type"` // "paper" or "bridge"
	URL          string  `json:"url,omitempty" yaml:"url,omitempty"`
	Login        string  `json:"login,omitempty" yaml:"login,omitempty"`
	Server       string  `json:"server,omitempty" yaml:"server,omitempty"`
	TokenEnv     string  `json:"token_env,omitempty" yaml:"token_env,omitempty"`
	PasswordEnv  string  `json:"password_env,omitempty" yaml:"password_env,omitempty"`
	PaperBalance float64 `json:"paper_balance,omitempty" yaml:"paper_balance,omitempty"`
}

type SymbolConfig struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Suffix string `json:"suffix" yaml:"suffix"`
}

// InstrumentConfig is one instrument's tick economics. Bid and Ask only
// seed the paper venue's quote.
type InstrumentConfig struct {
	TickValue  float64 `json:"tick_value" yaml:"tick_value"`
	TickSize   float64 `json:"tick_size" yaml:"tick_size"`
	VolumeStep float64 `json:"volume_step" yaml:"volume_step"`
	MinVolume  float64 `json:"min_volume" yaml:"min_volume"`
	MaxVolume  float64 `json:"max_volume,omitempty" yaml:"max_volume,omitempty"`
	Digits     int     `json:"digits,omitempty" yaml:"digits,omitempty"`
	Bid        float64 `json:"bid,omitempty" yaml:"bid,omitempty"`
	Ask        float64 `json:"ask,omitempty" yaml:"ask,omitempty"`
}

type RiskConfig struct {
	DefaultRRRatio float64 `json:"default_rr_ratio" yaml:"default_rr_ratio"`
	DefaultRisk    float64 `json:"default_risk" yaml:"default_risk"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Queue.Dir == "" {
		return fmt.Errorf("queue.dir is required")
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	if c.Notify.Dir == "" {
		return fmt.Errorf("notify.dir is required")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}

	d, err := c.Worker.Durations()
	if err != nil {
		return err
	}
	if d.Poll <= 0 || d.Health <= 0 || d.VenueTimeout <= 0 || d.ClaimLease <= 0 || d.ReconnectMaxElapsed <= 0 {
		return fmt.Errorf("worker intervals must be positive")
	}
	if d.ClaimLease <= d.VenueTimeout {
		return fmt.Errorf("worker.claim_lease must be longer than worker.venue_timeout")
	}
	if c.Worker.MaxRetries < 1 {
		return fmt.Errorf("worker.max_retries must be at least 1")
	}

	switch c.Venue.Type {
	case "paper":
		if c.Venue.PaperBalance <= 0 {
			return fmt.Errorf("venue.paper_balance must be positive")
		}
	case "bridge":
		if c.Venue.URL == "" {
			return fmt.Errorf("venue.url required for bridge type")
		}
	default:
		return fmt.Errorf("venue.type must be 'paper' or 'bridge'")
	}

	if err := risk.ValidateRatio(c.Risk.DefaultRRRatio); err != nil {
		return fmt.Errorf("risk.default_rr_ratio: %w", err)
	}
	if c.Risk.DefaultRisk < 0 {
		return fmt.Errorf("risk.default_risk must not be negative")
	}

	for base, inst := range c.Instruments {
		if err := inst.validate(); err != nil {
			return fmt.Errorf("instruments.%s: %w", base, err)
		}
	}
	return nil
}

func (i InstrumentConfig) validate() error {
	if i.TickValue <= 0 || i.TickSize <= 0 {
		return fmt.Errorf("tick_value and tick_size must be positive")
	}
	if i.VolumeStep <= 0 || i.MinVolume <= 0 {
		return fmt.Errorf("volume_step and min_volume must be positive")
	}
	if i.MaxVolume != 0 && i.MaxVolume < i.MinVolume {
		return fmt.Errorf("max_volume is below min_volume")
	}
	return nil
}

// InstrumentTable returns the built-in instruments with the configured
// ones merged over them. Base codes are upper-cased.
func (c *Config) InstrumentTable() map[string]market.InstrumentInfo {
	out := make(map[string]market.InstrumentInfo, len(market.Instruments)+len(c.Instruments))
	for base, info := range market.Instruments {
		out[base] = info
	}
	for base, inst := range c.Instruments {
		base = strings.ToUpper(base)
		out[base] = market.InstrumentInfo{
			Symbol:     base,
			TickValue:  inst.TickValue,
			TickSize:   inst.TickSize,
			VolumeStep: inst.VolumeStep,
			MinVolume:  inst.MinVolume,
			MaxVolume:  inst.MaxVolume,
			Digits:     inst.Digits,
			Bid:        inst.Bid,
			Ask:        inst.Ask,
		}
	}
	return out
}

// Durations parses the worker intervals.
func (w WorkerConfig) Durations() (Durations, error) {
	var d Durations
	for _, f := range []struct {
		name string
		val  string
		dst  *time.Duration
	}{
		{"poll_interval", w.PollInterval, &d.Poll},
		{"health_interval", w.HealthInterval, &d.Health},
		{"venue_timeout", w.VenueTimeout, &d.VenueTimeout},
		{"claim_lease", w.ClaimLease, &d.ClaimLease},
		{"reconnect_max_elapsed", w.ReconnectMaxElapsed, &d.ReconnectMaxElapsed},
	} {
		v, err := time.ParseDuration(f.val)
		if err != nil {
			return Durations{}, fmt.Errorf("worker.%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return d, nil
}

// WorkerID returns the configured worker id or the hostname.
func (w WorkerConfig) WorkerID() string {
	if w.ID != "" {
		return w.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return host
}

// Credentials reads the venue secrets from the environment.
func (v VenueConfig) Credentials() broker.Credentials {
	return broker.Credentials{
		Login:    v.Login,
		Password: os.Getenv(v.PasswordEnv),
		Server:   v.Server,
	}
}

// Token returns the bridge API token from the environment.
func (v VenueConfig) Token() string {
	return os.Getenv(v.TokenEnv)
}

// LoadEnv loads KEY=value pairs from path into the environment. Variables
// already set win. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Apply configures the standard logger.
func (l LogConfig) Apply() error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if l.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Queue:   QueueConfig{Dir: "./var/queue"},
		Journal: JournalConfig{DBPath: "./var/trades.db"},
		Notify:  NotifyConfig{Dir: "./var/notify"},
		Status:  StatusConfig{Addr: "127.0.0.1:8089"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Worker: WorkerConfig{
			PollInterval:        "1s",
			HealthInterval:      "10s",
			VenueTimeout:        "10s",
			ClaimLease:          "2m",
			MaxRetries:          5,
			ReconnectMaxElapsed: "1m",
		},
		Venue: VenueConfig{
			Type:         "paper",
			TokenEnv:     "BRIDGE_TOKEN",
			PasswordEnv:  "VENUE_PASSWORD",
			PaperBalance: 10000,
		},
		Risk: RiskConfig{
			DefaultRRRatio: 2.0,
			DefaultRisk:    100,
		},
	}
}
