package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Default()
	cfg.Identity.Name = "Kim"
	return cfg
}

func TestDefaultNeedsIdentity(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without identity must not validate")
	}
	cfg.Identity.Mobile = "555123"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad api url", func(c *Config) { c.API.BaseURL = "ftp://x" }},
		{"bad ws url", func(c *Config) { c.Transport.WSURL = "http://x" }},
		{"unknown mode", func(c *Config) { c.Transport.Mode = "carrier-pigeon" }},
		{"sweep >= window", func(c *Config) { c.Presence.SweepSec = 30 }},
		{"zero hold", func(c *Config) { c.Typing.HoldMs = 0 }},
		{"no data dir", func(c *Config) { c.Paths.DataDir = " " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("want validation error")
			}
		})
	}
}

func TestP2PModeValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.Mode = "p2p"
	cfg.Transport.WSURL = "" // irrelevant in p2p mode
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.Transport.MdnsTag = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for missing mdns tag")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := validConfig()
	want.Presence.InactivitySec = 45

	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Presence.InactivitySec != 45 || got.Identity.Name != "Kim" {
		t.Fatalf("got %+v", got)
	}
	if got.InactivityWindow() != 45*time.Second {
		t.Fatalf("window = %v", got.InactivityWindow())
	}
}

func TestLoadMissingFieldsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"identity":{"name":"Kim"}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Typing.HoldMs != 1200 || cfg.Presence.SweepSec != 10 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"identity":{"name":"Kim"}}`)...)
	os.WriteFile(path, body, 0o644)

	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, created, err := Ensure(path, "Kim", "555")
	if err != nil {
		t.Fatal(err)
	}
	if !created || cfg.Identity.Name != "Kim" {
		t.Fatalf("created=%v cfg=%+v", created, cfg)
	}

	again, created, err := Ensure(path, "ignored", "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if created || again.Identity.Name != "Kim" {
		t.Fatalf("second Ensure: created=%v cfg=%+v", created, again)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := Save(path, validConfig()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Config, 1)
	w, err := Watch(path, func(c Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	next := validConfig()
	next.Typing.HoldMs = 2000
	if err := Save(path, next); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-reloaded:
		if got.Typing.HoldMs != 2000 {
			t.Fatalf("got %+v", got.Typing)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload never fired")
	}
}

func TestWatchSkipsInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := Save(path, validConfig()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan Config, 1)
	w, err := Watch(path, func(c Config) { reloaded <- c })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	os.WriteFile(path, []byte("{not json"), 0o644)

	select {
	case got := <-reloaded:
		t.Fatalf("invalid edit reached callback: %+v", got)
	case <-time.After(500 * time.Millisecond):
	}
}
