package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"gopkg.in/yaml.v3"
)

// Config is the league configuration read from TRADE_CONFIG.
type Config struct {
	Trade   TradeConfig   `yaml:"trade"`
	League  LeagueConfig  `yaml:"league"`
	Catalog CatalogConfig `yaml:"catalog"`
}

type TradeConfig struct {
	AcceptanceWindow Duration   `yaml:"acceptance_window"`
	ProposalTTL      Duration   `yaml:"proposal_ttl"`
	Retention        Duration   `yaml:"retention"`
	TradeDeadline    *time.Time `yaml:"trade_deadline"`
	SweepInterval    Duration   `yaml:"sweep_interval"`
	SweepBatchSize   int        `yaml:"sweep_batch_size"`
	LeaseTTL         Duration   `yaml:"lease_ttl"`
	MaxRosterSize    int        `yaml:"max_roster_size"`
}

type LeagueConfig struct {
	Admins     []string          `yaml:"admins"`
	Franchises []FranchiseConfig `yaml:"franchises"`
}

type FranchiseConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Representatives []string `yaml:"representatives"`
}

// CatalogConfig seeds the in-memory asset catalog used without a database.
type CatalogConfig struct {
	Players []CatalogAsset `yaml:"players"`
	Picks   []CatalogAsset `yaml:"picks"`
}

type CatalogAsset struct {
	ID        string `yaml:"id"`
	Franchise string `yaml:"franchise"`
	Label     string `yaml:"label"`
}

// Default returns the league defaults.
func Default() *Config {
	policy := trade.DefaultPolicy()
	return &Config{
		Trade: TradeConfig{
			AcceptanceWindow: Duration(policy.AcceptanceWindow),
			ProposalTTL:      Duration(policy.ProposalTTL),
			Retention:        Duration(policy.Retention),
			SweepInterval:    Duration(trade.DefaultReaperConfig().Interval),
			SweepBatchSize:   policy.SweepBatchSize,
			LeaseTTL:         Duration(5 * time.Minute),
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides policy values from TRADE_* variables.
func (c *Config) ApplyEnv() error {
	for key, dst := range map[string]*Duration{
		"TRADE_ACCEPTANCE_WINDOW": &c.Trade.AcceptanceWindow,
		"TRADE_PROPOSAL_TTL":      &c.Trade.ProposalTTL,
		"TRADE_RETENTION":         &c.Trade.Retention,
		"TRADE_SWEEP_INTERVAL":    &c.Trade.SweepInterval,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = Duration(d)
	}
	if v := os.Getenv("TRADE_DEADLINE"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid TRADE_DEADLINE: %w", err)
		}
		c.Trade.TradeDeadline = &t
	}
	return nil
}

// Validate checks durations and that every id parses.
func (c *Config) Validate() error {
	var problems []string
	if c.Trade.AcceptanceWindow <= 0 {
		problems = append(problems, "trade.acceptance_window must be positive")
	}
	if c.Trade.ProposalTTL <= 0 {
		problems = append(problems, "trade.proposal_ttl must be positive")
	}
	if c.Trade.Retention <= 0 {
		problems = append(problems, "trade.retention must be positive")
	}
	for _, id := range c.League.Admins {
		if _, err := uuid.Parse(id); err != nil {
			problems = append(problems, fmt.Sprintf("league.admins: invalid id %q", id))
		}
	}
	for _, f := range c.League.Franchises {
		if _, err := uuid.Parse(f.ID); err != nil {
			problems = append(problems, fmt.Sprintf("league.franchises: invalid id %q", f.ID))
		}
		for _, rep := range f.Representatives {
			if _, err := uuid.Parse(rep); err != nil {
				problems = append(problems, fmt.Sprintf("league.franchises[%s]: invalid representative %q", f.ID, rep))
			}
		}
	}
	for _, a := range append(append([]CatalogAsset{}, c.Catalog.Players...), c.Catalog.Picks...) {
		if _, err := uuid.Parse(a.ID); err != nil {
			problems = append(problems, fmt.Sprintf("catalog: invalid asset id %q", a.ID))
		}
		if _, err := uuid.Parse(a.Franchise); err != nil {
			problems = append(problems, fmt.Sprintf("catalog: invalid franchise %q for asset %s", a.Franchise, a.ID))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Policy converts the trade section into a trade.Policy.
func (c *Config) Policy() trade.Policy {
	return trade.Policy{
		AcceptanceWindow: time.Duration(c.Trade.AcceptanceWindow),
		ProposalTTL:      time.Duration(c.Trade.ProposalTTL),
		Retention:        time.Duration(c.Trade.Retention),
		TradeDeadline:    c.Trade.TradeDeadline,
		SweepBatchSize:   c.Trade.SweepBatchSize,
	}
}

// Duration is a time.Duration that also accepts a day suffix, e.g. "7d".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses a Go duration or a whole number of days ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
