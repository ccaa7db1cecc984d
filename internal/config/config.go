package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// EnvFileVar names an extra dotenv file loaded before the defaults.
const EnvFileVar = "CUSTODY_ENV_FILE"

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"custody"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL       string `env:"DATABASE_URL"`
	RedisURL          string `env:"REDIS_URL"`
	NATSURL           string `env:"NATS_URL"`
	NATSStream        string `env:"NATS_STREAM" envDefault:"CUSTODY"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"custody"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	AdapterTimeout time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"5s"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	NoteMaxLength  int           `env:"NOTE_MAX_LENGTH" envDefault:"1024"`

	CustodyAddress string   `env:"CUSTODY_ADDRESS,required"`
	InitialOwners  []string `env:"INITIAL_OWNERS" envSeparator:","`

	NativeSymbol      string            `env:"NATIVE_SYMBOL" envDefault:"CST"`
	NativeDecimals    int32             `env:"NATIVE_DECIMALS" envDefault:"6"`
	NativeSeedBalance uint64            `env:"NATIVE_SEED_BALANCE" envDefault:"0"`
	Tokens            map[string]string `env:"TOKENS" envSeparator:"," envKeyValSeparator:":"`
	TokenSeedBalances map[string]string `env:"TOKEN_SEED_BALANCES" envSeparator:"," envKeyValSeparator:":"`
	Prices            map[string]string `env:"PRICES" envSeparator:"," envKeyValSeparator:":"`
	PriceCurrency     string            `env:"PRICE_CURRENCY" envDefault:"USD"`

	// APICredentials maps principal to bcrypt hash. Quote values in dotenv
	// files with single quotes so "$" is not expanded.
	APICredentials map[string]string `env:"API_CREDENTIALS" envSeparator:"," envKeyValSeparator:":"`

	SendRateLimitPerMinute int `env:"SEND_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	NotifyWorkers          int `env:"NOTIFY_WORKERS" envDefault:"1"`
	NotifyQueueSize        int `env:"NOTIFY_QUEUE_SIZE" envDefault:"1024"`
}

// Token is a configured fungible asset.
type Token struct {
	ID       string
	Decimals int32
	Seed     uint64
}

// Load reads dotenv files, then the environment, and validates the result.
// Variables already set in the environment take precedence over files.
func Load() (Config, error) {
	loadDotenv()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotenv() {
	files := []string{".env.local", ".env"}
	if extra := os.Getenv(EnvFileVar); extra != "" {
		files = append([]string{extra}, files...)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Validate checks cross-field rules env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if !common.IsHexAddress(c.CustodyAddress) {
		errs = append(errs, fmt.Errorf("CUSTODY_ADDRESS %q is not a hex address", c.CustodyAddress))
	}
	if len(c.InitialOwners) == 0 {
		errs = append(errs, errors.New("INITIAL_OWNERS must list at least one owner"))
	}
	for _, o := range c.InitialOwners {
		if !common.IsHexAddress(strings.TrimSpace(o)) {
			errs = append(errs, fmt.Errorf("INITIAL_OWNERS entry %q is not a hex address", o))
		}
	}
	for p := range c.APICredentials {
		if !common.IsHexAddress(p) {
			errs = append(errs, fmt.Errorf("API_CREDENTIALS key %q is not a hex address", p))
		}
	}
	if _, err := c.TokenList(); err != nil {
		errs = append(errs, err)
	}
	if c.NoteMaxLength <= 0 {
		errs = append(errs, errors.New("NOTE_MAX_LENGTH must be positive"))
	}
	if c.AdapterTimeout <= 0 {
		errs = append(errs, errors.New("ADAPTER_TIMEOUT must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if !c.IsDevelopment() {
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv))
		}
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv))
		}
	}
	return errors.Join(errs...)
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether APP_ENV names a local environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Custody returns the parsed custody principal.
func (c Config) Custody() common.Address {
	return common.HexToAddress(c.CustodyAddress)
}

// Owners returns the parsed initial owners.
func (c Config) Owners() []common.Address {
	out := make([]common.Address, 0, len(c.InitialOwners))
	for _, o := range c.InitialOwners {
		out = append(out, common.HexToAddress(strings.TrimSpace(o)))
	}
	return out
}

// TokenList parses TOKENS and TOKEN_SEED_BALANCES, ordered by id. Ids are
// trimmed so "gold:0, silver:2" names "silver".
func (c Config) TokenList() ([]Token, error) {
	seeds := make(map[string]string, len(c.TokenSeedBalances))
	for id, raw := range c.TokenSeedBalances {
		seeds[strings.TrimSpace(id)] = raw
	}
	out := make([]Token, 0, len(c.Tokens))
	seen := make(map[string]bool, len(c.Tokens))
	for rawID, raw := range c.Tokens {
		id := strings.TrimSpace(rawID)
		if id == "" || id == "native" || seen[id] {
			return nil, fmt.Errorf("TOKENS: invalid asset id %q", id)
		}
		decimals, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil || decimals < 0 {
			return nil, fmt.Errorf("TOKENS: decimals for %s: %q", id, raw)
		}
		seen[id] = true
		tok := Token{ID: id, Decimals: int32(decimals)}
		if seed, ok := seeds[id]; ok {
			tok.Seed, err = strconv.ParseUint(strings.TrimSpace(seed), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("TOKEN_SEED_BALANCES: %s: %w", id, err)
			}
		}
		out = append(out, tok)
	}
	for id := range seeds {
		if !seen[id] {
			return nil, fmt.Errorf("TOKEN_SEED_BALANCES: unknown asset %s", id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
