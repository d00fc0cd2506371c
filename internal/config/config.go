package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Richie010/vshareu/internal/util"
)

type Config struct {
	Identity  Identity  `json:"identity"`
	API       API       `json:"api"`
	Transport Transport `json:"transport"`
	Presence  Presence  `json:"presence"`
	Typing    Typing    `json:"typing"`
	Paths     Paths     `json:"paths"`
}

type Identity struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type API struct {
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeout_seconds"`
}

// Transport selects between the hosted STOMP server ("stomp") and the
// serverless LAN mesh ("p2p").
type Transport struct {
	Mode       string `json:"mode"`
	WSURL      string `json:"ws_url"`
	ListenPort int    `json:"listen_port"`
	MdnsTag    string `json:"mdns_tag"`
	KeyFile    string `json:"key_file"`
}

type Presence struct {
	InactivitySec int `json:"inactivity_seconds"`
	SweepSec      int `json:"sweep_seconds"`
}

// Typing durations are milliseconds; both sides of the typing exchange work
// at sub-second scale.
type Typing struct {
	HoldMs     int `json:"hold_ms"`
	DebounceMs int `json:"debounce_ms"`
}

type Paths struct {
	DataDir string `json:"data_dir"`
}

func Default() Config {
	return Config{
		Identity: Identity{},
		API: API{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 5,
		},
		Transport: Transport{
			Mode:       "stomp",
			WSURL:      "ws://localhost:8080/ws",
			ListenPort: 0,
			MdnsTag:    "vshareu-mdns",
			KeyFile:    "data/identity.key",
		},
		Presence: Presence{
			InactivitySec: 30,
			SweepSec:      10,
		},
		Typing: Typing{
			HoldMs:     1200,
			DebounceMs: 800,
		},
		Paths: Paths{
			DataDir: "data",
		},
	}
}

func (c *Config) Validate() error {
	// Identity
	if strings.TrimSpace(c.Identity.Name) == "" && strings.TrimSpace(c.Identity.Mobile) == "" {
		return errors.New("identity.name or identity.mobile is required")
	}

	// API
	if err := validateHTTPURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.TimeoutSec <= 0 {
		return errors.New("api.timeout_seconds must be > 0")
	}

	// Transport
	switch c.Transport.Mode {
	case "stomp":
		u, err := url.Parse(c.Transport.WSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return errors.New("transport.ws_url must be a ws:// or wss:// url")
		}
	case "p2p":
		if c.Transport.ListenPort < 0 || c.Transport.ListenPort > 65535 {
			return errors.New("transport.listen_port must be 0..65535")
		}
		if strings.TrimSpace(c.Transport.MdnsTag) == "" {
			return errors.New("transport.mdns_tag is required")
		}
		if strings.TrimSpace(c.Transport.KeyFile) == "" {
			return errors.New("transport.key_file is required")
		}
	default:
		return errors.New(`transport.mode must be "stomp" or "p2p"`)
	}

	// Presence
	if c.Presence.InactivitySec <= 0 {
		return errors.New("presence.inactivity_seconds must be > 0")
	}
	if c.Presence.SweepSec <= 0 {
		return errors.New("presence.sweep_seconds must be > 0")
	}
	if c.Presence.SweepSec >= c.Presence.InactivitySec {
		return errors.New("presence.sweep_seconds must be < presence.inactivity_seconds")
	}

	// Typing
	if c.Typing.HoldMs <= 0 {
		return errors.New("typing.hold_ms must be > 0")
	}
	if c.Typing.DebounceMs <= 0 {
		return errors.New("typing.debounce_ms must be > 0")
	}

	// Paths
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Duration accessors save callers from repeating the unit conversions.

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

func (c *Config) InactivityWindow() time.Duration {
	return time.Duration(c.Presence.InactivitySec) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Presence.SweepSec) * time.Second
}

func (c *Config) TypingHold() time.Duration {
	return time.Duration(c.Typing.HoldMs) * time.Millisecond
}

func (c *Config) TypingDebounce() time.Duration {
	return time.Duration(c.Typing.DebounceMs) * time.Millisecond
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file
// seeded with the given identity. Returns (cfg, createdNew, err).
func Ensure(path, name, mobile string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	cfg.Identity.Name = name
	cfg.Identity.Mobile = mobile
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
