package main

import (
	"flag"
	"log"
	"os"

	"TrendPulse/internal/di"
	"TrendPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s symbol=%s interval=%s", cfg.Environment, cfg.Exchange.Symbol, cfg.Exchange.Interval)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Archive.Enabled {
		log.Printf("clickhouse: connected and schema ready - db: %s", cfg.Archive.ClickHouse.Database)
	}
	if cfg.Publish.Enabled {
		log.Printf("kafka: connected brokers=%v topic=%s", cfg.Publish.Kafka.Brokers, cfg.Publish.Kafka.Topic)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
