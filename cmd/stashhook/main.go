package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/stashhook/internal/bitbucket"
	"git.home.luguber.info/inful/stashhook/internal/config"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"stashhook.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Webhooks struct {
		List struct {
			Project string   `short:"p" required:"" help:"Project key"`
			Repo    string   `short:"r" required:"" help:"Repository slug"`
			Event   []string `short:"e" help:"Filter by event type (repeatable)"`
		} `cmd:"" help:"List webhooks for a repository"`

		Register struct {
			Project  string   `short:"p" required:"" help:"Project key"`
			Repo     string   `short:"r" required:"" help:"Repository slug"`
			Name     string   `help:"Webhook name (defaults to configured name)"`
			Callback string   `help:"Callback URL (defaults to configured callback)"`
			Event    []string `short:"e" help:"Event to subscribe (repeatable, defaults to configured events)"`
			Inactive bool     `help:"Create the webhook inactive"`
		} `cmd:"" help:"Register a webhook on a repository"`

		Ensure struct{} `cmd:"" help:"Reconcile webhooks for all configured repositories once"`

		Delete struct {
			Project string `short:"p" required:"" help:"Project key"`
			Repo    string `short:"r" required:"" help:"Repository slug"`
			ID      int    `required:"" help:"Webhook ID"`
		} `cmd:"" help:"Delete a webhook by ID"`
	} `cmd:"" help:"Manage repository webhooks"`

	Repos struct {
		List struct {
			Project string `short:"p" required:"" help:"Project key"`
			Filter  string `short:"f" help:"Repository name filter"`
		} `cmd:"" help:"List repositories in a project"`
	} `cmd:"" help:"Browse repositories"`

	Projects struct {
		List struct {
			Name string `short:"n" help:"Project name filter"`
		} `cmd:"" help:"List visible projects"`
	} `cmd:"" help:"Browse projects"`

	Daemon struct {
		MetricsAddr string `help:"Address to serve Prometheus metrics on (e.g. :9114); disabled when empty"`
	} `cmd:"" help:"Run the webhook reconciliation daemon"`

	Journal struct {
		Limit int `short:"n" default:"20" help:"Number of recent entries to show"`
	} `cmd:"" help:"Show recent reconcile journal entries"`
}

func main() {
	kctx := kong.Parse(&CLI)

	// Secrets commonly live in .env during development; missing file is fine.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, kctx.Command(), cfg); err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

// credentialsFor maps the configured auth type to client credentials.
func credentialsFor(cfg *config.Config) bitbucket.Credentials {
	switch cfg.Server.Auth.Type {
	case config.AuthToken:
		return bitbucket.NewTokenCredentials(cfg.Server.Auth.Token)
	case config.AuthBasic:
		return bitbucket.NewBasicCredentials(cfg.Server.Auth.Username, cfg.Server.Auth.Password)
	default:
		return bitbucket.Anonymous
	}
}

// buildClient assembles the REST client from configuration.
func buildClient(cfg *config.Config, opts ...bitbucket.ClientOption) (*bitbucket.Client, error) {
	return bitbucket.NewClient(bitbucket.APIURL(cfg.Server.BaseURL), credentialsFor(cfg),
		bitbucket.NewHTTPRequestExecutor(), opts...)
}
