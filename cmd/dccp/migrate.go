package main

import (
	"context"
	"fmt"

	"github.com/carebridge/dccp/internal/config"
	"github.com/carebridge/dccp/internal/dbpool"
	"github.com/carebridge/dccp/internal/store"
)

// MigrateCmd applies the embedded schema's CREATE TABLE IF NOT EXISTS
// statements against the configured database.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(cli *CLI) error {
	path := cli.Config
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("migrate: load config: %w", err)
	}

	pool := dbpool.New()
	defer pool.Close()

	db, err := pool.Get(cfg.Database)
	if err != nil {
		return fmt.Errorf("migrate: open database: %w", err)
	}

	st := store.New(db, cfg.Database.Driver)
	if err := st.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Println("migrate: schema up to date")
	return nil
}
