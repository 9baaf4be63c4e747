package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fleetdesk/internal/config"
	"fleetdesk/internal/database"
	"fleetdesk/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type fleetConfig struct {
	Cars      []models.Car      `yaml:"cars"`
	Customers []models.Customer `yaml:"customers"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		fleetPath = flag.String("fleet", "configs/fleet.yaml", "path to fleet.yaml")
		dbPath    = flag.String("db", "./data/fleet.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*fleetPath)
	if err != nil {
		return fmt.Errorf("read fleet: %w", err)
	}
	var cfg fleetConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse fleet: %w", err)
	}
	if len(cfg.Cars) == 0 && len(cfg.Customers) == 0 {
		return fmt.Errorf("no cars or customers in yaml")
	}

	if err = config.ValidateCars(cfg.Cars); err != nil {
		return fmt.Errorf("validate cars: %w", err)
	}
	if err = config.ValidateCustomers(cfg.Customers); err != nil {
		return fmt.Errorf("validate customers: %w", err)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = db.SeedFleet(ctx, cfg.Cars, cfg.Customers); err != nil {
		return fmt.Errorf("seed fleet: %w", err)
	}

	fmt.Printf("done: cars=%d customers=%d\n", len(cfg.Cars), len(cfg.Customers))
	return nil
}
