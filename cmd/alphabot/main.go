package main

import (
	"flag"
	"log"
	"os"

	"AlphaBot/internal/di"
	"AlphaBot/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path (empty for defaults)")
	flag.Parse()

	if *configPath != "" {
		if _, err := os.Stat(*configPath); os.IsNotExist(err) {
			log.Printf("config %s not found, using defaults", *configPath)
			*configPath = ""
		}
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
