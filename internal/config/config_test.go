package config

import (
	"os"
	"path/filepath"
	"testing"

	"emperror.dev/errors"
	"github.com/go-test/deep"

	"github.com/mikequentel/extractposter/internal/fault"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, "config.yml", `
bluesky:
  login: user.bsky.social
  password: app-password
mastodon:
  base_url: https://mastodon.example
  access_token: tok
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := &Config{
		Bluesky:  &BlueskyConfig{Login: "user.bsky.social", Password: "app-password", BaseURL: DefaultBlueskyBaseURL},
		Mastodon: &MastodonConfig{BaseURL: "https://mastodon.example", AccessToken: "tok"},
		Keys:     []string{"bluesky", "mastodon"},
	}
	if diff := deep.Equal(cfg, want); diff != nil {
		t.Error(diff)
	}
	if !cfg.Has(Bluesky) || !cfg.Has(Mastodon) || cfg.Has(Twitter) {
		t.Errorf("unexpected services: %v", cfg.Keys)
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeConfig(t, "config.toml", `
[mastodon]
base_url = "https://mastodon.example"
access_token = "tok"

[twitter]
consumer_key = "ck"
consumer_secret = "cs"
access_token = "at"
access_secret = "as"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Has(Bluesky) {
		t.Error("bluesky should be absent")
	}
	if cfg.Mastodon == nil || cfg.Mastodon.AccessToken != "tok" {
		t.Errorf("mastodon = %+v", cfg.Mastodon)
	}
	if cfg.Twitter == nil || cfg.Twitter.AccessSecret != "as" {
		t.Errorf("twitter = %+v", cfg.Twitter)
	}
}

func TestLoad_OnlyMastodon(t *testing.T) {
	p := writeConfig(t, "config.yaml", "mastodon:\n  base_url: https://m.example\n  access_token: t\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Has(Bluesky) {
		t.Error("bluesky must be disabled when its key is absent")
	}
}

func TestLoad_NullSectionIsAbsent(t *testing.T) {
	p := writeConfig(t, "config.yml", "bluesky:\nmastodon:\n  base_url: https://m.example\n  access_token: t\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Has(Bluesky) {
		t.Error("null bluesky section should disable bluesky")
	}
	if diff := deep.Equal(cfg.Keys, []string{"mastodon"}); diff != nil {
		t.Error(diff)
	}
}

func TestLoad_EmptyDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yml", ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Has(Bluesky) || cfg.Has(Mastodon) || cfg.Has(Twitter) {
		t.Error("empty document should enable nothing")
	}
}

func TestLoad_UnknownKeys(t *testing.T) {
	p := writeConfig(t, "config.yml", "pixelfed:\n  token: x\nmastodon:\n  base_url: https://m.example\n  access_token: t\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(cfg.Unknown(), []string{"pixelfed"}); diff != nil {
		t.Error(diff)
	}
}

func TestLoad_ExpandEnv(t *testing.T) {
	t.Setenv("TEST_EXTRACTPOSTER_PASSWORD", "from-env")
	p := writeConfig(t, "config.yml", "bluesky:\n  login: u\n  password: ${TEST_EXTRACTPOSTER_PASSWORD}\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bluesky.Password != "from-env" {
		t.Errorf("password = %q, want from-env", cfg.Bluesky.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if !errors.Is(err, fault.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"yaml", "config.yml", "bluesky: [unclosed"},
		{"toml", "config.toml", "[mastodon\nbase_url ="},
		{"yaml wrong shape", "config.yml", "bluesky: just-a-string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if !errors.Is(err, fault.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestValidateFor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		service string
		wantErr bool
	}{
		{"absent section", Config{}, Bluesky, true},
		{"bluesky ok", Config{Bluesky: &BlueskyConfig{Login: "u", Password: "p"}}, Bluesky, false},
		{"bluesky no password", Config{Bluesky: &BlueskyConfig{Login: "u"}}, Bluesky, true},
		{"mastodon ok", Config{Mastodon: &MastodonConfig{BaseURL: "https://m", AccessToken: "t"}}, Mastodon, false},
		{"mastodon no url", Config{Mastodon: &MastodonConfig{AccessToken: "t"}}, Mastodon, true},
		{"twitter partial", Config{Twitter: &TwitterConfig{ConsumerKey: "ck"}}, Twitter, true},
		{"blank login", Config{Bluesky: &BlueskyConfig{Login: "  ", Password: "p"}}, Bluesky, true},
		{"other section incomplete", Config{
			Bluesky: &BlueskyConfig{Login: "u", Password: "p"},
			Twitter: &TwitterConfig{ConsumerKey: "ck"},
		}, Bluesky, false},
		{"unknown service", Config{}, "myspace", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateFor(tt.service)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFor(%s) error = %v, wantErr %v", tt.service, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, fault.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestValidateFor_DefaultBlueskyBaseURL(t *testing.T) {
	cfg := Config{Bluesky: &BlueskyConfig{Login: "u", Password: "p"}}
	if err := cfg.ValidateFor(Bluesky); err != nil {
		t.Fatal(err)
	}
	if cfg.Bluesky.BaseURL != DefaultBlueskyBaseURL {
		t.Errorf("base url = %q", cfg.Bluesky.BaseURL)
	}
}

// Loading never checks required fields; an incomplete section only matters
// once its service is targeted.
func TestLoad_IncompleteSectionLoads(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yml", "bluesky:\n  login: u\n  password: p\ntwitter:\n  consumer_key: k\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Has(Twitter) {
		t.Fatal("twitter section should be present")
	}
	if err := cfg.ValidateFor(Twitter); !errors.Is(err, fault.ErrConfig) {
		t.Errorf("expected ErrConfig for twitter, got %v", err)
	}
	if err := cfg.ValidateFor(Bluesky); err != nil {
		t.Errorf("bluesky: %v", err)
	}
}
