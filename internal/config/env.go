package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"

	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
	"github.com/Caqil/solana-share-signer/pkg/logger"
)

// Prefix is prepended to every variable name, e.g. WALLET_STORE_DIR
const Prefix = "WALLET"

// Config contains all configuration parameters for the signer.
// The Argon2 cost applies to new enrollments and auth method changes only;
// rotation always keeps the cost stored on the record.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// KDFWorkers bounds concurrent Argon2 runs; 0 means one per CPU
	KDFWorkers int `envconfig:"KDF_WORKERS" default:"0"`

	StoreDir string `envconfig:"STORE_DIR" default:"./wallets"`

	Argon2Time        uint32 `envconfig:"ARGON2_TIME" default:"3"`
	Argon2MemoryKiB   uint32 `envconfig:"ARGON2_MEMORY_KIB" default:"65536"`
	Argon2Parallelism uint8  `envconfig:"ARGON2_PARALLELISM" default:"4"`
}

// Load reads and validates configuration from the environment
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process(Prefix, c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects values the signer cannot run with
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.KDFWorkers < 0 {
		return fmt.Errorf("%s_KDF_WORKERS must not be negative: %d", Prefix, c.KDFWorkers)
	}
	if c.StoreDir == "" {
		return fmt.Errorf("%s_STORE_DIR cannot be empty", Prefix)
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return fmt.Errorf("argon2 cost: %w", err)
	}
	return nil
}

// Argon2Params returns the enrollment cost
func (c *Config) Argon2Params() kdf.Argon2Params {
	return kdf.Argon2Params{
		Memory:      c.Argon2MemoryKiB,
		Time:        c.Argon2Time,
		Parallelism: c.Argon2Parallelism,
	}
}

// LoggerConfig returns the logger settings
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Pretty = c.LogPretty
	return lc
}

// ReadCredential returns the credential from envVar if it is set, otherwise
// prompts for it on the terminal without echo. The caller must zero the
// returned slice after use.
func ReadCredential(prompt, envVar string) ([]byte, error) {
	if v, ok := os.LookupEnv(envVar); ok {
		if v == "" {
			return nil, fmt.Errorf("%s is set but empty", envVar)
		}
		return []byte(v), nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal: set %s or run interactively", envVar)
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("credential cannot be empty")
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	clear(raw)
	return out, nil
}
