package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"EventEdge/internal/di"
	"EventEdge/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	check := flag.Bool("check", false, "validate the config and exit")
	showVersion := flag.Bool("version", false, "print the build and model version and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}
	if *showVersion {
		fmt.Printf("eventedge %s model v%d\n", version, cfg.Engine.ModelVersion)
		return
	}
	if *check {
		fmt.Printf("config ok: env=%s model=v%d port=%d\n", cfg.Environment, cfg.Engine.ModelVersion, cfg.Server.Port)
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("initialize app: %v", err)
	}
	// Run blocks until SIGINT or SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app stopped: %v", err)
		os.Exit(1)
	}
}
