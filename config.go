/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BindingConfig is one entry of the "bindings" configuration list
// (spec.md section 6).
type BindingConfig struct {
	Address           string `yaml:"address"`
	TLS               bool   `yaml:"tls"`
	Certificate       string `yaml:"certificate"`
	Key               string `yaml:"key"`
	RequireCertificate bool  `yaml:"require_certificate"`
	WebSocket         bool   `yaml:"websocket"`
}

// OperConfig is one entry of the "opers" configuration list.
type OperConfig struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// DatabaseYAML mirrors the "database.*" configuration keys prior to
// resolution into a DatabaseConfig (the timeouts are integer milliseconds,
// converted to time.Duration when the DatabaseConfig is built).
type DatabaseYAML struct {
	URL            string `yaml:"url"`
	Driver         string `yaml:"driver"`
	MaxPoolSize    int    `yaml:"max_pool_size"`
	MinPoolSize    int    `yaml:"min_pool_size"`
	ConnectTimeout int    `yaml:"connect_timeout"` // milliseconds
	IdleTimeout    int    `yaml:"idle_timeout"`     // milliseconds, 0 = unset
}

// Config is the full YAML-loaded server configuration, per spec.md section
// 6's configuration table, using the teacher's gopkg.in/yaml.v3 dependency
// for structured text loading.
type Config struct {
	Unsafe          bool            `yaml:"unsafe"`
	Domain          string          `yaml:"domain"`
	Bindings        []BindingConfig `yaml:"bindings"`
	OrgName         string          `yaml:"org_name"`
	OrgLocation     string          `yaml:"org_location"`
	OrgMail         string          `yaml:"org_mail"`
	DefaultChanMode string          `yaml:"default_chan_mode"`
	MOTDFile        string          `yaml:"motd_file"`
	Opers           []OperConfig    `yaml:"opers"`
	Password        string          `yaml:"password"`
	Database        DatabaseYAML    `yaml:"database"`
	Workers         int             `yaml:"workers"`

	AwayLen    int `yaml:"awaylen"`
	ChannelLen int `yaml:"channellen"`
	KeyLen     int `yaml:"keylen"`
	KickLen    int `yaml:"kicklen"`
	NameLen    int `yaml:"namelen"`
	NickLen    int `yaml:"nicklen"`
	TopicLen   int `yaml:"topiclen"`
	UserLen    int `yaml:"userlen"`

	LoginTimeout int `yaml:"login_timeout"` // milliseconds

	sourcePath string // path LoadConfig read this from; used by REHASH
}

// DefaultConfig returns the documented defaults (spec.md section 6).
func DefaultConfig() *Config {
	limits := DefaultLimits()
	return &Config{
		Unsafe:          false,
		Domain:          "ellidri.localdomain",
		Bindings:        []BindingConfig{{Address: "127.0.0.1:6667"}},
		OrgName:         "unspecified",
		OrgLocation:     "unspecified",
		OrgMail:         "unspecified",
		DefaultChanMode: "+nst",
		MOTDFile:        "/etc/motd",
		Database:        DatabaseYAML{MaxPoolSize: 10, MinPoolSize: 0, ConnectTimeout: 10000},
		Workers:         0,
		AwayLen:         limits.AwayLen,
		ChannelLen:      limits.ChannelLen,
		KeyLen:          limits.KeyLen,
		KickLen:         limits.KickLen,
		NameLen:         limits.NameLen,
		NickLen:         limits.NickLen,
		TopicLen:        limits.TopicLen,
		UserLen:         limits.UserLen,
		LoginTimeout:    limits.LoginTimeout,
	}
}

// LoadConfig reads and parses path, applying defaults for any key absent
// from the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ircd: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ircd: parsing config %s: %w", path, err)
	}
	cfg.sourcePath = path

	return cfg, validateConfig(cfg)
}

// validateConfig enforces the unsafe-startup rule and the default channel
// mode's "no parameterized modes" constraint (spec.md section 6).
func validateConfig(cfg *Config) error {
	for _, m := range []byte(strings.TrimPrefix(cfg.DefaultChanMode, "+")) {
		switch m {
		case CModeInviteOnly, CModeModerated, CModeNoExternal, CModeSecret, CModeTopicLock:
		case CModeKey, CModeLimit:
			return Error(fmt.Sprintf("ircd: default_chan_mode %q may not include a parameterized mode", cfg.DefaultChanMode))
		default:
			return Error(fmt.Sprintf("ircd: default_chan_mode %q contains an unrecognized mode %q", cfg.DefaultChanMode, string(m)))
		}
	}

	if cfg.Unsafe {
		return nil
	}

	for _, b := range cfg.Bindings {
		if !isLoopback(b.Address) && !b.TLS {
			return Error(fmt.Sprintf("ircd: unsafe: plain-text binding %s on a non-loopback address requires unsafe: true", b.Address))
		}
		if !isLoopback(b.Address) && b.WebSocket {
			return Error(fmt.Sprintf("ircd: unsafe: websocket binding %s on a non-loopback address requires unsafe: true", b.Address))
		}
		if b.TLS && !isLoopback(b.Address) && b.Certificate != "" {
			selfSigned, err := certIsSelfSigned(b.Certificate)
			if err == nil && selfSigned {
				return Error(fmt.Sprintf("ircd: unsafe: self-signed certificate on %s requires unsafe: true", b.Address))
			}
		}
	}
	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return host == "localhost"
	}
	return ip.IsLoopback()
}

func (c *Config) limits() *Limits {
	return &Limits{
		AwayLen:      c.AwayLen,
		ChannelLen:   c.ChannelLen,
		KeyLen:       c.KeyLen,
		KickLen:      c.KickLen,
		NameLen:      c.NameLen,
		NickLen:      c.NickLen,
		TopicLen:     c.TopicLen,
		UserLen:      c.UserLen,
		LoginTimeout: c.LoginTimeout,
	}
}
