// Package config resolves the server settings from defaults, an optional
// YAML file, the environment (including a .env file) and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SALESDASH_"

type Config struct {
	DataFile    string        `yaml:"data_file"`
	Sheet       string        `yaml:"sheet"`
	ListenAddr  string        `yaml:"listen_addr"`
	Verbose     bool          `yaml:"verbose"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	Workers     int           `yaml:"workers"`
	PreviewRows int           `yaml:"preview_rows"`
	Currency    string        `yaml:"currency"`
	ClickRate   float64       `yaml:"click_rate"`
	CORSOrigins []string      `yaml:"cors_origins"`
}

func Default() Config {
	return Config{
		DataFile:    "Dummy Data.xlsx",
		Sheet:       "Sh1",
		ListenAddr:  ":8080",
		SessionTTL:  30 * time.Minute,
		Workers:     runtime.NumCPU(),
		PreviewRows: 100,
		Currency:    "₹",
		ClickRate:   20,
		CORSOrigins: []string{"*"},
	}
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataFile) == "" {
		errs = append(errs, errors.New("data file is required"))
	}
	if strings.TrimSpace(c.Sheet) == "" {
		errs = append(errs, errors.New("sheet is required"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.PreviewRows < 0 {
		errs = append(errs, fmt.Errorf("preview rows must not be negative, got %d", c.PreviewRows))
	}
	if c.ClickRate <= 0 {
		errs = append(errs, fmt.Errorf("click rate must be positive, got %g", c.ClickRate))
	}
	return errors.Join(errs...)
}

// Load parses args (without the program name). A .env file in the working
// directory is read if present; it never overrides variables already set in
// the process environment.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("salesdash", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	dataFile := fs.String("data", cfg.DataFile, "dataset file (.xlsx, .xls or .csv)")
	sheet := fs.String("sheet", cfg.Sheet, "worksheet name")
	listenAddr := fs.String("listen-addr", cfg.ListenAddr, "HTTP listen address")
	verbose := fs.Bool("verbose", cfg.Verbose, "enable verbose (debug) logging")
	sessionTTL := fs.Duration("session-ttl", cfg.SessionTTL, "idle session lifetime")
	workers := fs.Int("workers", cfg.Workers, "aggregation goroutines")
	previewRows := fs.Int("preview-rows", cfg.PreviewRows, "rows shown in the table preview")
	currency := fs.String("currency", cfg.Currency, "currency symbol")
	clickRate := fs.Float64("click-rate", cfg.ClickRate, "click requests per second per client")
	corsOrigins := fs.StringSlice("cors-origins", cfg.CORSOrigins, "allowed CORS origins")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	// 1. YAML file
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return cfg, err
		}
	}

	// 2. Environment
	_ = godotenv.Load()
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}

	// 3. Flags given on the command line
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataFile = *dataFile
		case "sheet":
			cfg.Sheet = *sheet
		case "listen-addr":
			cfg.ListenAddr = *listenAddr
		case "verbose":
			cfg.Verbose = *verbose
		case "session-ttl":
			cfg.SessionTTL = *sessionTTL
		case "workers":
			cfg.Workers = *workers
		case "preview-rows":
			cfg.PreviewRows = *previewRows
		case "currency":
			cfg.Currency = *currency
		case "click-rate":
			cfg.ClickRate = *clickRate
		case "cors-origins":
			cfg.CORSOrigins = *corsOrigins
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("DATA", &cfg.DataFile)
	str("SHEET", &cfg.Sheet)
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("CURRENCY", &cfg.Currency)

	var errs []error
	parse := func(key string, fn func(string) error) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || v == "" {
			return
		}
		if err := fn(v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		}
	}
	parse("VERBOSE", func(v string) (err error) {
		cfg.Verbose, err = strconv.ParseBool(v)
		return err
	})
	parse("SESSION_TTL", func(v string) (err error) {
		cfg.SessionTTL, err = time.ParseDuration(v)
		return err
	})
	parse("WORKERS", func(v string) (err error) {
		cfg.Workers, err = strconv.Atoi(v)
		return err
	})
	parse("PREVIEW_ROWS", func(v string) (err error) {
		cfg.PreviewRows, err = strconv.Atoi(v)
		return err
	})
	parse("CLICK_RATE", func(v string) (err error) {
		cfg.ClickRate, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("CORS_ORIGINS", func(v string) error {
		cfg.CORSOrigins = strings.Split(v, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
		return nil
	})
	return errors.Join(errs...)
}
