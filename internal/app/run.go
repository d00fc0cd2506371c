// Package app wires config, account service, transport and session together
// and drives them from a terminal.
package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Richie010/vshareu/internal/api"
	"github.com/Richie010/vshareu/internal/config"
	"github.com/Richie010/vshareu/internal/identity"
	"github.com/Richie010/vshareu/internal/session"
	"github.com/Richie010/vshareu/internal/storage"
	"github.com/Richie010/vshareu/internal/transport"
	"github.com/Richie010/vshareu/internal/util"
)

type Options struct {
	Dir     string
	CfgPath string
	Cfg     config.Config
}

// Run starts one client from the given config and blocks in the interactive
// loop until the context is cancelled or the user quits.
func Run(ctx context.Context, opt Options) error {
	cfg := opt.Cfg

	dataDir := util.ResolvePath(opt.Dir, cfg.Paths.DataDir)
	db, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open peer cache: %w", err)
	}
	defer db.Close()
	log.Printf("APP: peer cache at %s", db.Path())

	self, selfID, client, err := resolveIdentity(cfg)
	if err != nil {
		return err
	}
	log.Printf("APP: identity %q (account id %d)", self, selfID)

	var tr transport.Transport
	switch cfg.Transport.Mode {
	case "p2p":
		keyFile := util.ResolvePath(opt.Dir, cfg.Transport.KeyFile)
		tr = transport.NewMesh(cfg.Transport.ListenPort, keyFile, cfg.Transport.MdnsTag)
	default:
		st := transport.NewStomp(cfg.Transport.WSURL)
		st.OnDrop(func(err error) {
			fmt.Fprintf(os.Stderr, "\nconnection lost: %v — /connect to retry\n", err)
		})
		tr = st
	}

	sess := session.New(self, tr, session.Options{
		SelfID:           selfID,
		API:              client,
		DB:               db,
		InactivityWindow: cfg.InactivityWindow(),
		SweepInterval:    cfg.SweepInterval(),
		TypingHold:       cfg.TypingHold(),
		TypingDebounce:   cfg.TypingDebounce(),
	})

	// Timing knobs follow the config file while running.
	if opt.CfgPath != "" {
		w, err := config.Watch(opt.CfgPath, func(next config.Config) {
			sess.ApplyTimings(next.InactivityWindow(), next.SweepInterval(),
				next.TypingHold(), next.TypingDebounce())
		})
		if err != nil {
			log.Printf("APP: config watch unavailable: %v", err)
		} else {
			defer w.Close()
		}
	}

	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sess.Disconnect()

	return repl(ctx, sess)
}

// resolveIdentity turns the configured identity into a peer key, going
// through the account service when one is configured. Login falls back to
// registration for a first run.
func resolveIdentity(cfg config.Config) (self string, selfID int64, client *api.Client, err error) {
	if cfg.Transport.Mode == "p2p" {
		self = identity.Derive(cfg.Identity.Name, cfg.Identity.Mobile)
		if self == "" {
			return "", 0, nil, fmt.Errorf("identity.name or identity.mobile required")
		}
		return self, 0, nil, nil
	}

	client = api.New(cfg.API.BaseURL, cfg.APITimeout())
	if cfg.Identity.Mobile != "" {
		if u, err := client.Login(cfg.Identity.Mobile); err == nil {
			return u.Key(), u.ID, client, nil
		} else {
			log.Printf("APP: login failed: %v", err)
		}
	}
	if cfg.Identity.Name == "" {
		return "", 0, nil, fmt.Errorf("no account for mobile %q and no name to register with", cfg.Identity.Mobile)
	}
	u, err := client.Register(cfg.Identity.Name, cfg.Identity.Mobile)
	if err != nil {
		return "", 0, nil, fmt.Errorf("register: %w", err)
	}
	log.Printf("APP: registered new account %d", u.ID)
	return u.Key(), u.ID, client, nil
}
