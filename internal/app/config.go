package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"sigilo/internal/log"
	"sigilo/internal/protocol/ratchet"
)

const (
	defaultLogLevel     = "NOTICE"
	defaultOneTimeBatch = 32

	// defaultSignedPreKeyGraceHours is how long a superseded signed prekey
	// stays loadable so in-flight handshakes still decrypt.
	defaultSignedPreKeyGraceHours = 7 * 24
)

// Storage locates the on-disk state.
type Storage struct {
	// Home is the data directory holding the store database and, by
	// default, the log file.
	Home string
}

func (s *Storage) validate() error {
	if s.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: no home directory: %w", err)
		}
		s.Home = filepath.Join(dir, ".sigilo")
	}
	return nil
}

// DBPath returns the path of the store database.
func (s *Storage) DBPath() string {
	return filepath.Join(s.Home, "sigilo.db")
}

// Logging controls the log backend.
type Logging struct {
	// Disable suppresses all logging.
	Disable bool
	// File is the log file; empty logs to stdout.
	File string
	// Level is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
	Level string
}

func (l *Logging) validate() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if !log.ValidLevel(l.Level) {
		return fmt.Errorf("config: invalid Logging.Level: %q", l.Level)
	}
	return nil
}

// Ratchet bounds the per-session memory retained for out-of-order and
// superseded-state decryption. Zero fields take the engine defaults;
// larger values tolerate more reordering at the cost of state size.
type Ratchet struct {
	MaxSkip           uint32
	MaxMessageKeys    int
	MaxReceiverChains int
	MaxArchivedStates int
}

// Params converts the section into engine parameters.
func (r *Ratchet) Params() ratchet.Params {
	return ratchet.Params{
		MaxSkip:           r.MaxSkip,
		MaxMessageKeys:    r.MaxMessageKeys,
		MaxReceiverChains: r.MaxReceiverChains,
		MaxArchivedStates: r.MaxArchivedStates,
	}
}

// PreKeys controls the prekey inventory.
type PreKeys struct {
	// OneTimeBatch is how many one-time prekeys a generation run creates.
	OneTimeBatch int
	// SignedGraceHours is how long superseded signed prekeys are retained.
	SignedGraceHours int
}

func (p *PreKeys) validate() error {
	if p.OneTimeBatch == 0 {
		p.OneTimeBatch = defaultOneTimeBatch
	}
	if p.OneTimeBatch < 0 {
		return fmt.Errorf("config: PreKeys.OneTimeBatch must be positive")
	}
	if p.SignedGraceHours == 0 {
		p.SignedGraceHours = defaultSignedPreKeyGraceHours
	}
	if p.SignedGraceHours < 0 {
		return fmt.Errorf("config: PreKeys.SignedGraceHours must be positive")
	}
	return nil
}

// Config is the top-level configuration.
type Config struct {
	Storage Storage
	Logging Logging
	Ratchet Ratchet
	PreKeys PreKeys
}

// FixupAndValidate applies defaults and checks the configuration.
func (c *Config) FixupAndValidate() error {
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	return c.PreKeys.validate()
}

// Load parses and validates the TOML configuration in buf.
func Load(buf []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(buf), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: undecoded keys: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads and validates the configuration file at path. A missing
// file yields the defaults.
func LoadFile(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := new(Config)
			if err := cfg.FixupAndValidate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	return Load(buf)
}
