// Package config loads the per-service credentials document.
//
// The document is YAML (.yml, .yaml) or TOML (.toml). Every top-level key names
// a service; a missing or null key disables that service. String values go
// through os.ExpandEnv, so secrets may be written as ${VAR}.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/mikequentel/extractposter/internal/fault"
)

const (
	Bluesky  = "bluesky"
	Mastodon = "mastodon"
	Twitter  = "twitter"
)

const DefaultBlueskyBaseURL = "https://bsky.social/xrpc"

type BlueskyConfig struct {
	Login    string `yaml:"login" toml:"login"`
	Password string `yaml:"password" toml:"password"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`
}

type MastodonConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
}

type TwitterConfig struct {
	ConsumerKey    string `yaml:"consumer_key" toml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" toml:"consumer_secret"`
	AccessToken    string `yaml:"access_token" toml:"access_token"`
	AccessSecret   string `yaml:"access_secret" toml:"access_secret"`
}

type Config struct {
	Bluesky  *BlueskyConfig  `yaml:"bluesky" toml:"bluesky"`
	Mastodon *MastodonConfig `yaml:"mastodon" toml:"mastodon"`
	Twitter  *TwitterConfig  `yaml:"twitter" toml:"twitter"`

	// Keys lists every top-level key with a non-null value, including ones
	// this program has no publisher for.
	Keys []string `yaml:"-" toml:"-"`
}

// Has reports whether the document configures service.
func (c *Config) Has(service string) bool {
	switch service {
	case Bluesky:
		return c.Bluesky != nil
	case Mastodon:
		return c.Mastodon != nil
	case Twitter:
		return c.Twitter != nil
	}
	return false
}

// Unknown returns the top-level keys no publisher handles.
func (c *Config) Unknown() []string {
	var out []string
	for _, k := range c.Keys {
		if k != Bluesky && k != Mastodon && k != Twitter {
			out = append(out, k)
		}
	}
	return out
}

// Load reads and validates the document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.New(fault.ErrFilesystem, "read config "+path, err)
	}
	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, errors.WithMessagef(err, "config %s", path)
	}
	return cfg, nil
}

type Format int

const (
	YAML Format = iota
	TOML
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOML
	}
	return YAML
}

// Parse decodes a document. Required fields are checked per targeted service
// by ValidateFor, so an incomplete section of a disabled service is no error.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}
	raw := map[string]interface{}{}

	switch format {
	case TOML:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fault.New(fault.ErrConfig, "parse toml", err)
		}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fault.New(fault.ErrConfig, "parse toml", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fault.New(fault.ErrConfig, "parse yaml", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fault.New(fault.ErrConfig, "parse yaml", err)
		}
	}

	for k, v := range raw {
		if v != nil {
			cfg.Keys = append(cfg.Keys, k)
		}
	}
	sort.Strings(cfg.Keys)

	cfg.expandEnv()
	if b := cfg.Bluesky; b != nil && b.BaseURL == "" {
		b.BaseURL = DefaultBlueskyBaseURL
	}
	return cfg, nil
}

func (c *Config) expandEnv() {
	for _, p := range c.fields() {
		*p = os.ExpandEnv(*p)
	}
}

func (c *Config) fields() []*string {
	var out []*string
	if b := c.Bluesky; b != nil {
		out = append(out, &b.Login, &b.Password, &b.BaseURL)
	}
	if m := c.Mastodon; m != nil {
		out = append(out, &m.BaseURL, &m.AccessToken)
	}
	if t := c.Twitter; t != nil {
		out = append(out, &t.ConsumerKey, &t.ConsumerSecret, &t.AccessToken, &t.AccessSecret)
	}
	return out
}

// ValidateFor checks the section of one service. An absent section is an
// error too: the caller asked for that service.
func (c *Config) ValidateFor(service string) error {
	var errs []error
	require := func(fields ...[2]string) {
		for _, f := range fields {
			if strings.TrimSpace(f[1]) == "" {
				errs = append(errs, fault.Newf(fault.ErrConfig, service, "missing %q", f[0]))
			}
		}
	}
	switch service {
	case Bluesky:
		if c.Bluesky == nil {
			return fault.Newf(fault.ErrConfig, service, "no %s section", service)
		}
		require([2]string{"login", c.Bluesky.Login}, [2]string{"password", c.Bluesky.Password})
		if c.Bluesky.BaseURL == "" {
			c.Bluesky.BaseURL = DefaultBlueskyBaseURL
		}
	case Mastodon:
		if c.Mastodon == nil {
			return fault.Newf(fault.ErrConfig, service, "no %s section", service)
		}
		require([2]string{"base_url", c.Mastodon.BaseURL}, [2]string{"access_token", c.Mastodon.AccessToken})
	case Twitter:
		t := c.Twitter
		if t == nil {
			return fault.Newf(fault.ErrConfig, service, "no %s section", service)
		}
		require(
			[2]string{"consumer_key", t.ConsumerKey},
			[2]string{"consumer_secret", t.ConsumerSecret},
			[2]string{"access_token", t.AccessToken},
			[2]string{"access_secret", t.AccessSecret},
		)
	default:
		return fault.Newf(fault.ErrConfig, service, "unknown service %q", service)
	}
	return errors.Combine(errs...)
}
