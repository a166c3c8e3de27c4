// Package config loads process configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/vsr"
)

// Config holds settings shared by all binaries.
type Config struct {
	RPCEndpoint  string
	WSEndpoint   string
	RPCRateLimit float64 // requests per second, 0 = unlimited

	ProgramID     string
	Registrar     string
	GoverningMint string

	// Offline inputs. When AccountsFile is set no RPC scan is performed.
	AccountsFile        string
	RegistrarConfigFile string
	AliasTableFile      string

	PostgresDSN   string
	ClickHouseDSN string
	UseMemory     bool

	// EvalTimestamp freezes the evaluation clock (unix seconds). Zero uses the live clock.
	EvalTimestamp      int64
	Workers            int
	PlaceholderAmounts []uint64

	RecalcInterval time.Duration
	WatchDebounce  time.Duration
	HTTPAddr       string
	APIRateLimit   float64 // API requests per second per client IP, 0 = unlimited
	OutputDir      string
	Verbose        bool
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		RPCEndpoint:         os.Getenv("SOLANA_RPC_ENDPOINT"),
		WSEndpoint:          os.Getenv("SOLANA_WS_ENDPOINT"),
		ProgramID:           envOr("VSR_PROGRAM_ID", vsr.ProgramID),
		Registrar:           os.Getenv("VSR_REGISTRAR"),
		GoverningMint:       os.Getenv("VSR_GOVERNING_MINT"),
		AccountsFile:        os.Getenv("ACCOUNTS_FILE"),
		RegistrarConfigFile: os.Getenv("REGISTRAR_CONFIG_FILE"),
		AliasTableFile:      os.Getenv("ALIAS_TABLE_FILE"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		ClickHouseDSN:       os.Getenv("CLICKHOUSE_DSN"),
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		OutputDir:           envOr("OUTPUT_DIR", "output"),
		RecalcInterval:      time.Hour,
		WatchDebounce:       30 * time.Second,
		PlaceholderAmounts:  vsr.DefaultPlaceholderAmounts,
		APIRateLimit:        5,
	}

	var err error
	if cfg.UseMemory, err = envBool("USE_MEMORY"); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = envBool("VERBOSE"); err != nil {
		return nil, err
	}
	if v := os.Getenv("EVAL_TS"); v != "" {
		if cfg.EvalTimestamp, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("EVAL_TS: %w", err)
		}
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if cfg.Workers, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("WORKERS: %w", err)
		}
	}
	if v := os.Getenv("RPC_RATE_LIMIT"); v != "" {
		if cfg.RPCRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("RPC_RATE_LIMIT: %w", err)
		}
	}
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if cfg.APIRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("API_RATE_LIMIT: %w", err)
		}
	}
	if v := os.Getenv("PHANTOM_AMOUNTS"); v != "" {
		if cfg.PlaceholderAmounts, err = ParseAmounts(v); err != nil {
			return nil, fmt.Errorf("PHANTOM_AMOUNTS: %w", err)
		}
	}
	if v := os.Getenv("RECALC_INTERVAL"); v != "" {
		if cfg.RecalcInterval, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("RECALC_INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("WATCH_DEBOUNCE"); v != "" {
		if cfg.WatchDebounce, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("WATCH_DEBOUNCE: %w", err)
		}
	}
	return cfg, nil
}

// RegisterFlags binds flags to cfg. Current values become the flag defaults,
// so environment settings apply unless a flag overrides them.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.RPCEndpoint, "rpc-endpoint", c.RPCEndpoint, "Solana RPC HTTP endpoint (or set SOLANA_RPC_ENDPOINT)")
	fs.StringVar(&c.WSEndpoint, "ws-endpoint", c.WSEndpoint, "Solana WebSocket endpoint (or set SOLANA_WS_ENDPOINT)")
	fs.Float64Var(&c.RPCRateLimit, "rpc-rate-limit", c.RPCRateLimit, "Max RPC requests per second, 0 = unlimited")
	fs.StringVar(&c.ProgramID, "program-id", c.ProgramID, "VSR program ID")
	fs.StringVar(&c.Registrar, "registrar", c.Registrar, "VSR registrar account")
	fs.StringVar(&c.GoverningMint, "mint", c.GoverningMint, "Voting mint (default: realm governing mint)")
	fs.StringVar(&c.AccountsFile, "accounts", c.AccountsFile, "JSON account snapshot file (skips RPC scan)")
	fs.StringVar(&c.RegistrarConfigFile, "registrar-config", c.RegistrarConfigFile, "JSON registrar config file (skips registrar decode)")
	fs.StringVar(&c.AliasTableFile, "aliases", c.AliasTableFile, "JSON alias table {primary: [alias...]}")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string (or set POSTGRES_DSN)")
	fs.StringVar(&c.ClickHouseDSN, "clickhouse-dsn", c.ClickHouseDSN, "ClickHouse connection string (or set CLICKHOUSE_DSN)")
	fs.BoolVar(&c.UseMemory, "use-memory", c.UseMemory, "Use in-memory storage instead of PostgreSQL")
	fs.Int64Var(&c.EvalTimestamp, "eval-ts", c.EvalTimestamp, "Freeze evaluation time at this unix timestamp")
	fs.IntVar(&c.Workers, "workers", c.Workers, "Member computation parallelism, 0 = GOMAXPROCS")
	fs.Var((*amountsValue)(&c.PlaceholderAmounts), "phantom-amounts", "Comma-separated native amounts treated as placeholder deposits")
	fs.DurationVar(&c.RecalcInterval, "recalc-interval", c.RecalcInterval, "Scheduled recalculation interval")
	fs.DurationVar(&c.WatchDebounce, "watch-debounce", c.WatchDebounce, "Delay between an account change and recalculation")
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP listen address")
	fs.Float64Var(&c.APIRateLimit, "api-rate-limit", c.APIRateLimit, "API requests per second per client IP, 0 = unlimited")
	fs.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "Output directory for reports")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable verbose (debug) logging")
}

// Validate checks settings needed to compute power.
func (c *Config) Validate() error {
	var problems []string

	if c.AccountsFile == "" && c.RPCEndpoint == "" {
		problems = append(problems, "--rpc-endpoint or --accounts is required")
	}
	if c.AccountsFile == "" && c.Registrar == "" {
		problems = append(problems, "--registrar is required for an RPC scan")
	}
	if c.RegistrarConfigFile == "" && c.Registrar == "" {
		problems = append(problems, "--registrar or --registrar-config is required")
	}
	for name, v := range map[string]string{
		"program-id": c.ProgramID,
		"registrar":  c.Registrar,
		"mint":       c.GoverningMint,
	} {
		if v == "" {
			continue
		}
		if _, err := domain.ParsePubKey(v); err != nil {
			problems = append(problems, fmt.Sprintf("--%s: %v", name, err))
		}
	}
	if c.Workers < 0 {
		problems = append(problems, "--workers must be >= 0")
	}
	if c.RPCRateLimit < 0 {
		problems = append(problems, "--rpc-rate-limit must be >= 0")
	}
	if c.APIRateLimit < 0 {
		problems = append(problems, "--api-rate-limit must be >= 0")
	}
	if c.EvalTimestamp < 0 {
		problems = append(problems, "--eval-ts must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateStorage checks that a persistence backend is configured.
func (c *Config) ValidateStorage() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	return nil
}

// PubKey parses an optional key setting; empty yields the zero key.
func PubKey(s string) (domain.PubKey, error) {
	if s == "" {
		return domain.PubKey{}, nil
	}
	return domain.ParsePubKey(s)
}

// ParseAmounts parses a comma-separated list of native amounts.
func ParseAmounts(s string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// amountsValue adapts a native amount list to pflag.Value.
type amountsValue []uint64

func (a *amountsValue) String() string {
	parts := make([]string, len(*a))
	for i, v := range *a {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ",")
}

func (a *amountsValue) Set(s string) error {
	v, err := ParseAmounts(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a *amountsValue) Type() string {
	return "amounts"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
