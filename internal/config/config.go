// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package config loads the daemon configuration, a TOML file.
//
// Example:
//
//	log_level = "debug"
//	heartbeat_interval = "1s"
//	ready_timeout = "5s"
//
//	[plc]
//	device_ip = "192.168.0.10"
//	device_port = 502
//
//	[robot]
//	device_ip = "192.168.0.20"
//	device_port = 10040
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
)

var (
	// ErrPathUnset indicates the environment variable naming the config file
	// was not set.
	ErrPathUnset = errors.New("config: path environment variable not set")

	// ErrInvalid indicates the config file was parsed, but failed validation.
	ErrInvalid = errors.New("config: invalid configuration")
)

type (
	// Config models the daemon configuration file.
	Config struct {
		LogLevel          string        `toml:"log_level"`
		HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
		ReadyTimeout      time.Duration `toml:"ready_timeout"`
		PLC               Device        `toml:"plc"`
		Robot             Device        `toml:"robot"`
	}

	// Device is the network endpoint of a device.
	Device struct {
		IP   netip.Addr `toml:"device_ip"`
		Port uint16     `toml:"device_port"`
	}
)

// Default returns the configuration used for any keys absent from the file.
func Default() *Config {
	return &Config{
		LogLevel:          logiface.LevelInformational.String(),
		HeartbeatInterval: time.Second,
		ReadyTimeout:      5 * time.Second,
		PLC:               Device{IP: netip.IPv4Unspecified()},
		Robot:             Device{IP: netip.IPv4Unspecified()},
	}
}

// LoadFromEnv loads the config file at the path given by the environment
// variable env.
func LoadFromEnv(env string) (*Config, error) {
	path, ok := os.LookupEnv(env)
	if !ok || path == `` {
		return nil, fmt.Errorf("%w: %s", ErrPathUnset, env)
	}
	return Load(path)
}

// Load decodes and validates the config file at path. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys: %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks c, returning an error wrapping ErrInvalid.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat_interval must be positive", ErrInvalid)
	}
	if c.ReadyTimeout < 0 {
		return fmt.Errorf("%w: ready_timeout must not be negative", ErrInvalid)
	}
	if err := c.PLC.validate(`plc`); err != nil {
		return err
	}
	if err := c.Robot.validate(`robot`); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level, defaulting to informational.
func (c *Config) Level() logiface.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return logiface.LevelInformational
	}
	return level
}

// Log dumps the configuration, at informational level.
func (c *Config) Log(logger *logiface.Logger[logiface.Event]) {
	logger.Info().
		Str(`log_level`, c.LogLevel).
		Dur(`heartbeat_interval`, c.HeartbeatInterval).
		Dur(`ready_timeout`, c.ReadyTimeout).
		Log(`config: loaded`)
	for _, d := range [...]struct {
		name   string
		device Device
	}{
		{`plc`, c.PLC},
		{`robot`, c.Robot},
	} {
		logger.Info().
			Str(`device`, d.name).
			Stringer(`addr`, d.device.AddrPort()).
			Log(`config: device`)
	}
}

// AddrPort returns the endpoint of the device.
func (d Device) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(d.IP, d.Port)
}

func (d Device) validate(section string) error {
	if !d.IP.Is4() {
		return fmt.Errorf("%w: %s.device_ip must be an IPv4 address in dotted decimal notation", ErrInvalid, section)
	}
	return nil
}

// ParseLevel parses the short keyword of a log level, as returned by
// logiface.Level.String, e.g. "info", or "trace".
func ParseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown log_level %q", ErrInvalid, s)
}
