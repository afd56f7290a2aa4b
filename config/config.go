// Package config loads the server configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// environment variables. Flags parsed in main are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Jam grid dimensions are shared with every client and are not configurable.
const (
	JamTracks = 8
	JamSteps  = 16
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Jam       JamConfig       `yaml:"jam"`
	World     WorldConfig     `yaml:"world"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TrustedProxies are IPs or CIDRs whose forwarding headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is either "console" or "json".
	Format string `yaml:"format"`
}

type RoomsConfig struct {
	MaxPlayers    int `yaml:"max_players"`
	MaxJamPlayers int `yaml:"max_jam_players"`
}

type JamConfig struct {
	DefaultTempo int `yaml:"default_tempo"`
	MinTempo     int `yaml:"min_tempo"`
	MaxTempo     int `yaml:"max_tempo"`
}

type WorldConfig struct {
	MaxEntities int `yaml:"max_entities"`
	// ClapPeakThreshold detects transients, LoudVolumeThreshold sustained loudness.
	ClapPeakThreshold   float64 `yaml:"clap_peak_threshold"`
	LoudVolumeThreshold float64 `yaml:"loud_volume_threshold"`
	DealSize            int     `yaml:"deal_size"`
	StarterDealSize     int     `yaml:"starter_deal_size"`
}

type RateLimitConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
}

var (
	ErrInvalidCapacity  = errors.New("invalid-capacity")
	ErrInvalidThreshold = errors.New("invalid-threshold")
	ErrInvalidTempo     = errors.New("invalid-tempo-range")
	ErrInvalidProxy     = errors.New("invalid-trusted-proxy")
)

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":5000",
			AllowedOrigins: []string{"http://localhost:3000"},
			TrustedProxies: []string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Rooms: RoomsConfig{
			MaxPlayers:    10,
			MaxJamPlayers: 4,
		},
		Jam: JamConfig{
			DefaultTempo: 120,
			MinTempo:     40,
			MaxTempo:     300,
		},
		World: WorldConfig{
			MaxEntities:         50,
			ClapPeakThreshold:   0.8,
			LoudVolumeThreshold: 0.6,
			DealSize:            3,
			StarterDealSize:     4,
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 60,
			Burst:             120,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("ROOMSYNC_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("TRUSTED_PROXIES"); ok && v != "" {
		c.Server.TrustedProxies = splitList(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

func splitList(v string) []string {
	items := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c Config) Validate() error {
	for _, p := range c.Server.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidProxy, p)
		}
	}

	switch {
	case c.Rooms.MaxPlayers <= 0:
		return fmt.Errorf("%w: rooms.max_players=%d", ErrInvalidCapacity, c.Rooms.MaxPlayers)
	case c.Rooms.MaxJamPlayers <= 0:
		return fmt.Errorf("%w: rooms.max_jam_players=%d", ErrInvalidCapacity, c.Rooms.MaxJamPlayers)
	case c.World.MaxEntities <= 0:
		return fmt.Errorf("%w: world.max_entities=%d", ErrInvalidCapacity, c.World.MaxEntities)
	case c.World.DealSize <= 0 || c.World.StarterDealSize <= 0:
		return fmt.Errorf("%w: world deal sizes must be positive", ErrInvalidCapacity)
	case c.RateLimit.MessagesPerSecond <= 0 || c.RateLimit.Burst <= 0:
		return fmt.Errorf("%w: rate_limit must be positive", ErrInvalidCapacity)
	}

	if !inUnitInterval(c.World.ClapPeakThreshold) {
		return fmt.Errorf("%w: world.clap_peak_threshold=%v", ErrInvalidThreshold, c.World.ClapPeakThreshold)
	}
	if !inUnitInterval(c.World.LoudVolumeThreshold) {
		return fmt.Errorf("%w: world.loud_volume_threshold=%v", ErrInvalidThreshold, c.World.LoudVolumeThreshold)
	}

	if c.Jam.MinTempo <= 0 || c.Jam.MinTempo > c.Jam.MaxTempo ||
		c.Jam.DefaultTempo < c.Jam.MinTempo || c.Jam.DefaultTempo > c.Jam.MaxTempo {
		return fmt.Errorf("%w: %d..%d default %d", ErrInvalidTempo, c.Jam.MinTempo, c.Jam.MaxTempo, c.Jam.DefaultTempo)
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}
