package main

import (
	"flag"
	"log"
	"os"

	"AlphaPulse/internal/di"
	"AlphaPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s weights_mode=%s", cfg.Environment, cfg.Weights.Mode)

	// A failed dedup store open is fatal here: starting without the dedup
	// gate means duplicate alerts from the first message on.
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("kafka: brokers=%v events=%s alerts=%s", cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.AlertsTopic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
