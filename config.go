package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoKeywords      = errors.New("at least one keyword is required")
	ErrNoCities        = errors.New("at least one city is required")
	ErrInvalidMaxPages = errors.New("max_pages must be at least 1")
	ErrInvalidRetries  = errors.New("fetch retries must be at least 1")
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0 Safari/537.36",
}

type config struct {
	Keywords     []string
	Cities       []string
	MaxPages     int
	UseGMB       bool
	Headless     bool
	JSONOut      bool
	OutputDir    string
	DelayMin     time.Duration
	DelayMax     time.Duration
	FetchTimeout time.Duration
	FetchRetries int
	Workers      int
	DBDSN        string
	UserAgents   []string

	// Seed-CSV mode
	SeedCSV  string
	SeedCity string
}

// fileConfig is the optional YAML run configuration.
type fileConfig struct {
	Keywords   []string `yaml:"keywords"`
	Cities     []string `yaml:"cities"`
	MaxPages   int      `yaml:"max_pages"`
	UseGMB     *bool    `yaml:"use_gmb"`
	Headless   *bool    `yaml:"headless"`
	JSON       *bool    `yaml:"json"`
	OutputDir  string   `yaml:"output_dir"`
	DelayMinMs int      `yaml:"delay_min_ms"`
	DelayMaxMs int      `yaml:"delay_max_ms"`
	Workers    int      `yaml:"workers"`
	UserAgents []string `yaml:"user_agents"`
}

// loadConfig layers defaults, environment variables and the optional YAML
// file, in that order.
func loadConfig(configPath string) (config, error) {
	cfg := config{
		Keywords:     []string{"diagnostic center"},
		Cities:       []string{"Mumbai"},
		MaxPages:     parseIntEnv("MAX_PAGES", 2),
		UseGMB:       true,
		Headless:     parseBoolEnv("HEADLESS", true),
		JSONOut:      false,
		OutputDir:    valueOrDefault(os.Getenv("OUTPUT_DIR"), "output"),
		DelayMin:     parseDurationEnv("RATE_MIN_MS", 1000),
		DelayMax:     parseDurationEnv("RATE_MAX_MS", 3000),
		FetchTimeout: parseDurationEnv("FETCH_TIMEOUT_MS", 20000),
		FetchRetries: parseIntEnv("FETCH_RETRIES", 3),
		Workers:      parseIntEnv("WORKERS", 2),
		DBDSN:        strings.TrimSpace(os.Getenv("DB_DSN")),
		UserAgents:   defaultUserAgents,
	}

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return config{}, fmt.Errorf("read config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return config{}, fmt.Errorf("parse config: %w", err)
		}
		cfg.apply(fc)
	}

	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMin, cfg.DelayMax = cfg.DelayMax, cfg.DelayMin
	}
	return cfg, cfg.validate()
}

func (c *config) apply(fc fileConfig) {
	if len(fc.Keywords) > 0 {
		c.Keywords = fc.Keywords
	}
	if len(fc.Cities) > 0 {
		c.Cities = fc.Cities
	}
	if fc.MaxPages > 0 {
		c.MaxPages = fc.MaxPages
	}
	if fc.UseGMB != nil {
		c.UseGMB = *fc.UseGMB
	}
	if fc.Headless != nil {
		c.Headless = *fc.Headless
	}
	if fc.JSON != nil {
		c.JSONOut = *fc.JSON
	}
	if fc.OutputDir != "" {
		c.OutputDir = fc.OutputDir
	}
	if fc.DelayMinMs > 0 {
		c.DelayMin = time.Duration(fc.DelayMinMs) * time.Millisecond
	}
	if fc.DelayMaxMs > 0 {
		c.DelayMax = time.Duration(fc.DelayMaxMs) * time.Millisecond
	}
	if fc.Workers > 0 {
		c.Workers = fc.Workers
	}
	if len(fc.UserAgents) > 0 {
		c.UserAgents = fc.UserAgents
	}
}

func (c config) validate() error {
	if len(c.Keywords) == 0 {
		return ErrNoKeywords
	}
	if len(c.Cities) == 0 {
		return ErrNoCities
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.FetchRetries < 1 {
		return ErrInvalidRetries
	}
	return nil
}

func (c config) randomDelay() time.Duration {
	gate := rateGate{delayMin: c.DelayMin, delayMax: c.DelayMax}
	return gate.interval()
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func parseDurationEnv(key string, defaultMs int) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return time.Duration(defaultMs) * time.Millisecond
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultMs) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func parseIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBoolEnv(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
