package controller

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calvinmclean/indexfeeder"
)

const (
	defaultBaudRate    = "115200"
	defaultReadTimeout = 100 * time.Millisecond
	defaultTickTime    = 2 * time.Second
)

// Config has everything needed to talk to feeders on one bus
type Config struct {
	SerialPort string `yaml:"serial_port"`
	BaudRate   string `yaml:"baud_rate"`

	// ReadTimeout is how long to wait for a feeder to echo a command
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// TickTime is how long a feeder is busy after echoing an index command. A feeder can't hear frames
	// while it is moving, so consecutive ticks are spaced by this much
	TickTime time.Duration `yaml:"tick_time"`

	// RTSDirection drives the transceiver direction with RTS for adapters that don't switch automatically
	RTSDirection bool `yaml:"rts_direction"`
	// LocalEcho is set when the adapter hears its own transmission, which is then skipped before the reply
	LocalEcho bool `yaml:"local_echo"`

	Feeders []FeederConfig `yaml:"feeders"`
}

// FeederConfig names a feeder slot
type FeederConfig struct {
	Name    string `yaml:"name"`
	Address uint8  `yaml:"address"`
}

// Load reads a YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

// ConfigFromEnv builds a Config from an optional FEEDER_CONFIG file, then applies the SERIAL_PORT, BAUD_RATE,
// RTS_DIRECTION and FEEDERS overrides
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv("FEEDER_CONFIG"); path != "" {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("SERIAL_PORT"); v != "" {
		cfg.SerialPort = v
	}
	if v := os.Getenv("BAUD_RATE"); v != "" {
		cfg.BaudRate = v
	}
	if v := os.Getenv("RTS_DIRECTION"); v != "" {
		rts, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RTS_DIRECTION: %w", err)
		}
		cfg.RTSDirection = rts
	}
	if v := os.Getenv("FEEDERS"); v != "" {
		feeders, err := ParseFeeders(v)
		if err != nil {
			return nil, err
		}
		cfg.Feeders = feeders
	}

	return cfg, nil
}

// Validate checks the config without changing it
func (c *Config) Validate() error {
	if c.SerialPort == "" {
		return errors.New("missing serial port")
	}

	if c.BaudRate != "" {
		_, err := strconv.Atoi(c.BaudRate)
		if err != nil {
			return fmt.Errorf("invalid baud rate %q: %w", c.BaudRate, err)
		}
	}

	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid read timeout: %s", c.ReadTimeout)
	}
	if c.TickTime < 0 {
		return fmt.Errorf("invalid tick time: %s", c.TickTime)
	}

	names := map[string]bool{}
	addresses := map[uint8]string{}
	for _, f := range c.Feeders {
		if f.Name == "" {
			return fmt.Errorf("feeder %d: missing name", f.Address)
		}
		if !feeder.Address(f.Address).Assigned() {
			return fmt.Errorf("feeder %q: address %d out of range 1-%d", f.Name, f.Address, feeder.AddressMax)
		}
		if names[f.Name] {
			return fmt.Errorf("feeder %q: duplicate name", f.Name)
		}
		if prev, ok := addresses[f.Address]; ok {
			return fmt.Errorf("feeders %q and %q share address %d", prev, f.Name, f.Address)
		}
		names[f.Name] = true
		addresses[f.Address] = f.Name
	}

	return nil
}

// Lookup resolves a feeder name or a decimal address
func (c *Config) Lookup(s string) (feeder.Address, error) {
	for _, f := range c.Feeders {
		if f.Name == s {
			return feeder.Address(f.Address), nil
		}
	}

	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown feeder %q", s)
	}

	addr := feeder.Address(n)
	if !addr.Assigned() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAddress, n)
	}
	return addr, nil
}

func (c *Config) baudRate() int {
	rate := c.BaudRate
	if rate == "" {
		rate = defaultBaudRate
	}
	n, _ := strconv.Atoi(rate)
	return n
}

func (c *Config) readTimeout() time.Duration {
	if c.ReadTimeout == 0 {
		return defaultReadTimeout
	}
	return c.ReadTimeout
}

func (c *Config) tickTime() time.Duration {
	if c.TickTime == 0 {
		return defaultTickTime
	}
	return c.TickTime
}

// ParseFeeders parses "name=address,name=address,..."
func ParseFeeders(input string) ([]FeederConfig, error) {
	var feeders []FeederConfig
	for entry := range strings.SplitSeq(input, ",") {
		name, addrStr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid feeder entry: %q", entry)
		}
		name = strings.TrimSpace(name)
		addrStr = strings.TrimSpace(addrStr)

		addr, err := strconv.ParseUint(addrStr, 10, 8)
		if err != nil || !feeder.Address(addr).Assigned() {
			return nil, fmt.Errorf("invalid feeder address: %q", addrStr)
		}
		feeders = append(feeders, FeederConfig{Name: name, Address: uint8(addr)})
	}
	return feeders, nil
}
