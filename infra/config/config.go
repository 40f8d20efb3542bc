// Package config loads the server configuration from YAML with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Book struct {
		TradedSymbol string          `yaml:"traded_symbol"`
		BaseSymbol   string          `yaml:"base_symbol"`
		PriceTick    int64           `yaml:"price_tick"`
		ContractSize decimal.Decimal `yaml:"contract_size"`
		FeeRate      decimal.Decimal `yaml:"fee_rate"`
	} `yaml:"book"`

	WAL struct {
		Dir             string        `yaml:"dir"`
		SegmentSize     uint64        `yaml:"segment_size"`
		SegmentDuration time.Duration `yaml:"segment_duration"`
	} `yaml:"wal"`

	Outbox struct {
		Dir string `yaml:"dir"`
	} `yaml:"outbox"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	Index struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"index"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	// Genesis seeds accounts before the WAL replays. Balances and
	// approvals are applied on every boot, never journaled, so replay
	// starts from an identical state each time.
	Genesis struct {
		Accounts []GenesisAccount `yaml:"accounts"`
	} `yaml:"genesis"`
}

type GenesisAccount struct {
	Address string          `yaml:"address"`
	Traded  decimal.Decimal `yaml:"traded"`
	Base    decimal.Decimal `yaml:"base"`
}

// Load reads, overrides and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	overrideWithEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Book.TradedSymbol == "" {
		c.Book.TradedSymbol = "TRD"
	}
	if c.Book.BaseSymbol == "" {
		c.Book.BaseSymbol = "BASE"
	}
	if c.Book.PriceTick == 0 {
		c.Book.PriceTick = 1
	}
	if c.Book.ContractSize.IsZero() {
		c.Book.ContractSize = decimal.NewFromInt(1)
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "data/wal"
	}
	if c.Outbox.Dir == "" {
		c.Outbox.Dir = "data/outbox"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "book.events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "book-indexer"
	}
	if c.Index.DBPath == "" {
		c.Index.DBPath = "data/index.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Book.PriceTick <= 0 {
		return fmt.Errorf("book.price_tick must be positive, got %d", c.Book.PriceTick)
	}
	if c.Book.ContractSize.Sign() <= 0 {
		return fmt.Errorf("book.contract_size must be positive, got %s", c.Book.ContractSize)
	}
	if c.Book.FeeRate.Sign() < 0 || c.Book.FeeRate.Cmp(decimal.NewFromInt(1)) >= 0 {
		return fmt.Errorf("book.fee_rate must be in [0, 1), got %s", c.Book.FeeRate)
	}
	if c.Book.TradedSymbol == c.Book.BaseSymbol {
		return fmt.Errorf("traded and base symbol must differ, both %q", c.Book.TradedSymbol)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	for i, a := range c.Genesis.Accounts {
		if a.Address == "" {
			return fmt.Errorf("genesis.accounts[%d]: empty address", i)
		}
		if a.Traded.Sign() < 0 || a.Base.Sign() < 0 {
			return fmt.Errorf("genesis.accounts[%d]: negative balance", i)
		}
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("FOLIO_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FOLIO_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
