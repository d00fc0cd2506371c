// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Richie010/vshareu/internal/app"
	"github.com/Richie010/vshareu/internal/config"
)

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("vShareU v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: run command requires directory path")
			fmt.Fprintln(os.Stderr, "Usage: vshareu run <client-directory>")
			os.Exit(1)
		}
		runClient(args[1], false)

	case "setup":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: setup command requires directory path")
			fmt.Fprintln(os.Stderr, "Usage: vshareu setup <client-directory>")
			os.Exit(1)
		}
		runClient(args[1], true)

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", args[0])
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

func runClient(dirArg string, interactive bool) {
	absDir, err := filepath.Abs(dirArg)
	if err != nil {
		log.Fatalf("Invalid client directory: %v", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		log.Fatalf("Create client directory: %v", err)
	}

	cfgPath := filepath.Join(absDir, "vshareu.json")
	cfg, created, err := config.Ensure(cfgPath, "anonymous", "")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if interactive || created {
		cfg = app.PromptInteractive(absDir, cfgPath, cfg)
		if err := config.Save(cfgPath, cfg); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
	}

	printBanner(absDir, cfgPath, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := app.Run(ctx, app.Options{
		Dir:     absDir,
		CfgPath: cfgPath,
		Cfg:     cfg,
	}); err != nil {
		log.Fatalf("Client failed: %v", err)
	}
}

func showUsage() {
	fmt.Println("vShareU - chat client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vshareu run <directory>    Run the client")
	fmt.Println("  vshareu setup <directory>  Interactive setup, then run")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run <directory>")
	fmt.Println("        Run a client from the specified directory")
	fmt.Println("        The directory holds vshareu.json and the data/ cache")
	fmt.Println()
	fmt.Println("  setup <directory>")
	fmt.Println("        Walk through the configuration interactively first")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -version  Show version information")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # First run with guided setup")
	fmt.Println("  vshareu setup ./me")
	fmt.Println()
	fmt.Println("  # Every run after that")
	fmt.Println("  vshareu run ./me")
}

func printBanner(dir, cfgPath string, cfg config.Config) {
	fmt.Println("────────────────────────────────────────")
	fmt.Println(" vShareU")
	fmt.Println("────────────────────────────────────────")
	fmt.Printf("Client Directory: %s\n", dir)
	fmt.Printf("Config File:      %s\n", cfgPath)
	fmt.Printf("Identity:         %s\n", cfg.Identity.Name)
	if cfg.Transport.Mode == "p2p" {
		fmt.Printf("Transport:        LAN mesh (mdns tag %s)\n", cfg.Transport.MdnsTag)
	} else {
		fmt.Printf("Transport:        %s\n", cfg.Transport.WSURL)
	}
	fmt.Println()
	fmt.Println("Starting... (Press Ctrl+C to stop)")
	fmt.Println()
}
