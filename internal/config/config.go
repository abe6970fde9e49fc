package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
)

var ErrInvalid = errors.New("invalid config")

const (
	OracleAuto   = "auto"
	OracleRemote = "remote"
)

// Duration is a time.Duration written as "30s", "5m" and so on.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Raffle  Raffle  `toml:"raffle"`
	Oracle  Oracle  `toml:"oracle"`
	Keeper  Keeper  `toml:"keeper"`
	Network Network `toml:"network"`
	Store   Store   `toml:"store"`
	Log     Log     `toml:"log"`
}

type Raffle struct {
	EntranceFee          uint64   `toml:"entrance_fee"`
	Interval             Duration `toml:"interval"`
	KeyHash              string   `toml:"key_hash"`
	SubscriptionID       uint64   `toml:"subscription_id"`
	RequestConfirmations uint16   `toml:"request_confirmations"`
	CallbackGasLimit     uint32   `toml:"callback_gas_limit"`
	NumWords             uint32   `toml:"num_words"`
}

type Oracle struct {
	// Mode is "auto" for the in-process coordinator fulfilling on its own, or
	// "remote" for fulfillments sent by the operator holding Key.
	Mode         string   `toml:"mode"`
	Seed         string   `toml:"seed"`
	FulfillDelay Duration `toml:"fulfill_delay"`
	// Key is the hex ed25519 public key allowed to fulfill remotely.
	Key string `toml:"key"`
}

type Keeper struct {
	Enabled      bool     `toml:"enabled"`
	PollInterval Duration `toml:"poll_interval"`
}

type Network struct {
	Listen       string   `toml:"listen"`
	KeyFile      string   `toml:"key_file"`
	CertValidity Duration `toml:"cert_validity"`

	// Faucet enables the remote deposit method.
	Faucet bool `toml:"faucet"`
}

type Store struct {
	// Path is the pebble directory. Empty keeps everything in memory.
	Path      string `toml:"path"`
	CacheSize int64  `toml:"cache_size"`
}

type Log struct {
	Level string `toml:"level"`
	Type  string `toml:"type"`
}

func Default() Config {
	return Config{
		Raffle: Raffle{
			EntranceFee:          10_000_000_000_000_000,
			Interval:             Duration{30 * time.Second},
			SubscriptionID:       1,
			RequestConfirmations: raffle.DefaultRequestConfirmations,
			CallbackGasLimit:     500_000,
			NumWords:             raffle.DefaultNumWords,
		},
		Oracle: Oracle{
			Mode:         OracleAuto,
			FulfillDelay: Duration{time.Second},
		},
		Keeper: Keeper{
			Enabled:      true,
			PollInterval: Duration{time.Second},
		},
		Network: Network{
			Listen:       "127.0.0.1:9900",
			KeyFile:      "node.key",
			CertValidity: Duration{24 * time.Hour},
		},
		Store: Store{
			CacheSize: 8 << 20,
		},
		Log: Log{
			Level: "info",
			Type:  "console",
		},
	}
}

// Load reads path on top of the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse is Load for an in-memory document.
func Parse(doc string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(doc, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
}

func (c Config) Validate() error {
	if c.Raffle.EntranceFee == 0 {
		return fmt.Errorf("%w: raffle.entrance_fee must be positive", ErrInvalid)
	}
	if c.Raffle.Interval.Duration <= 0 {
		return fmt.Errorf("%w: raffle.interval must be positive", ErrInvalid)
	}
	if c.Raffle.NumWords == 0 {
		return fmt.Errorf("%w: raffle.num_words must be positive", ErrInvalid)
	}
	if _, err := c.KeyHash(); err != nil {
		return err
	}
	if _, err := c.Seed(); err != nil {
		return err
	}
	switch c.Oracle.Mode {
	case OracleAuto:
	case OracleRemote:
		if _, err := c.OracleKey(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: oracle.mode must be %q or %q", ErrInvalid, OracleAuto, OracleRemote)
	}
	if c.Keeper.Enabled && c.Keeper.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: keeper.poll_interval must be positive", ErrInvalid)
	}
	if c.Network.Listen == "" {
		return fmt.Errorf("%w: network.listen is required", ErrInvalid)
	}
	if c.Network.CertValidity.Duration <= 0 {
		return fmt.Errorf("%w: network.cert_validity must be positive", ErrInvalid)
	}
	return nil
}

// RaffleConfig converts the [raffle] table.
func (c Config) RaffleConfig() (raffle.Config, error) {
	keyHash, err := c.KeyHash()
	if err != nil {
		return raffle.Config{}, err
	}
	return raffle.Config{
		EntranceFee:          c.Raffle.EntranceFee,
		Interval:             c.Raffle.Interval.Duration,
		KeyHash:              keyHash,
		SubscriptionID:       c.Raffle.SubscriptionID,
		RequestConfirmations: c.Raffle.RequestConfirmations,
		CallbackGasLimit:     c.Raffle.CallbackGasLimit,
		NumWords:             c.Raffle.NumWords,
	}, nil
}

func (c Config) KeyHash() (crypto.Hash, error) {
	return parseHash("raffle.key_hash", c.Raffle.KeyHash)
}

// Seed is the oracle seed. An empty seed is the zero hash.
func (c Config) Seed() (crypto.Hash, error) {
	return parseHash("oracle.seed", c.Oracle.Seed)
}

func (c Config) OracleKey() ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(c.Oracle.Key, "0x"))
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%w: oracle.key must be a hex ed25519 public key", ErrInvalid)
	}
	return key, nil
}

func parseHash(name, s string) (crypto.Hash, error) {
	var h crypto.Hash
	if s == "" {
		return h, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != crypto.HashSize {
		return h, fmt.Errorf("%w: %s must be %d hex bytes", ErrInvalid, name, crypto.HashSize)
	}
	copy(h[:], b)
	return h, nil
}
