package app

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Richie010/vshareu/internal/config"
)

// PromptInteractive walks through the settings that matter on first run and
// returns the filled-in config. Invalid answers fall back to defaults.
func PromptInteractive(dir, cfgPath string, cfg config.Config) config.Config {
	in := bufio.NewReader(os.Stdin)

	fmt.Println("────────────────────────────────────────")
	fmt.Println("vShareU interactive setup")
	fmt.Printf(" Client folder : %s\n", dir)
	fmt.Printf(" Config file   : %s\n", cfgPath)
	fmt.Println("────────────────────────────────────────")
	fmt.Println()

	cfg.Identity.Name = askString(in, "Display name", cfg.Identity.Name)
	cfg.Identity.Mobile = askString(in, "Mobile number", cfg.Identity.Mobile)

	cfg.Transport.Mode = askString(in, "Transport (stomp/p2p)", cfg.Transport.Mode)
	switch cfg.Transport.Mode {
	case "p2p":
		cfg.Transport.ListenPort = askInt(in, "Listen port (0=random)", cfg.Transport.ListenPort)
		cfg.Transport.MdnsTag = askString(in, "mDNS tag", cfg.Transport.MdnsTag)
	default:
		cfg.API.BaseURL = askString(in, "API base URL", cfg.API.BaseURL)
		cfg.Transport.WSURL = askString(in, "WebSocket URL", cfg.Transport.WSURL)
	}

	cfg.Presence.InactivitySec = askInt(in, "Inactivity window seconds", cfg.Presence.InactivitySec)
	cfg.Presence.SweepSec = askInt(in, "Presence sweep seconds", cfg.Presence.SweepSec)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\nKeeping defaults.\n", err)
		return config.Default()
	}
	return cfg
}

func askString(in *bufio.Reader, label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	s, _ := in.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func askInt(in *bufio.Reader, label string, def int) int {
	for {
		fmt.Printf("%s [%d]: ", label, def)
		s, _ := in.ReadString('\n')
		s = strings.TrimSpace(s)
		if s == "" {
			return def
		}
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
		fmt.Println("Please enter a number.")
	}
}
