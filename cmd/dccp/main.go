// Command dccp is the discharge-coordination control plane's CLI.
//
// Usage:
//
//	dccp serve --config config.yaml
//	dccp validate --config config.yaml
//	dccp schema
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/carebridge/dccp/internal/config"
)

// CLI is the root kong command tree.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the discharge-coordination HTTP façade."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Migrate  MigrateCmd  `cmd:"" help:"Run database schema migrations."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema for every bus message contract."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("dccp version %s\n", version)
	return nil
}

// ValidateCmd loads and parses a config file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	path := cli.Config
	if path == "" {
		path = "config.yaml"
	}
	if _, err := config.LoadConfig(path); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	fmt.Printf("%s: valid\n", path)
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "dccp: load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dccp"),
		kong.Description("Discharge-coordination control plane."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// rootContext returns a context cancelled on SIGINT/SIGTERM.
func rootContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()
	return ctx, cancel
}
