package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/stashhook/internal/bitbucket"
	"git.home.luguber.info/inful/stashhook/internal/config"
	"git.home.luguber.info/inful/stashhook/internal/journal"
	"git.home.luguber.info/inful/stashhook/internal/metrics"
	"git.home.luguber.info/inful/stashhook/internal/reconcile"
)

func run(ctx context.Context, command string, cfg *config.Config) error {
	switch command {
	case "webhooks list":
		return runWebhooksList(ctx, cfg)
	case "webhooks register":
		return runWebhooksRegister(ctx, cfg)
	case "webhooks ensure":
		return runWebhooksEnsure(ctx, cfg)
	case "webhooks delete":
		return runWebhooksDelete(ctx, cfg)
	case "repos list":
		return runReposList(ctx, cfg)
	case "projects list":
		return runProjectsList(ctx, cfg)
	case "daemon":
		return runDaemon(ctx, cfg)
	case "journal":
		return runJournal(ctx, cfg)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runWebhooksList(ctx context.Context, cfg *config.Config) error {
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	whc := bitbucket.NewWebhookClient(client, CLI.Webhooks.List.Project, CLI.Webhooks.List.Repo)
	seq, err := whc.List(ctx, CLI.Webhooks.List.Event...)
	if err != nil {
		return err
	}

	count := 0
	for {
		hook, ok, err := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		count++
		fmt.Printf("%d\t%s\t%s\tactive=%t\tevents=%s\n",
			hook.ID, hook.Name, hook.URL, hook.Active, strings.Join(hook.Events, ","))
	}
	slog.Debug("listed webhooks", "count", count)
	return nil
}

func runWebhooksRegister(ctx context.Context, cfg *config.Config) error {
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	name := CLI.Webhooks.Register.Name
	if name == "" {
		name = cfg.Webhook.Name
	}
	callback := CLI.Webhooks.Register.Callback
	if callback == "" {
		callback = cfg.Webhook.CallbackURL
	}
	events := CLI.Webhooks.Register.Event
	if len(events) == 0 {
		events = cfg.Webhook.Events
	}

	request, err := bitbucket.NewWebhookRequest(events...).
		WithName(name).
		WithCallback(callback).
		WithActive(!CLI.Webhooks.Register.Inactive).
		Build()
	if err != nil {
		return err
	}

	whc := bitbucket.NewWebhookClient(client, CLI.Webhooks.Register.Project, CLI.Webhooks.Register.Repo)
	created, err := whc.Register(ctx, request)
	if err != nil {
		return err
	}

	fmt.Printf("registered webhook %d (%s -> %s)\n", created.ID, created.Name, created.URL)
	return nil
}

func runWebhooksEnsure(ctx context.Context, cfg *config.Config) error {
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Daemon.JournalPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	r := reconcile.New(client, cfg.Webhook, cfg.Repositories, reconcile.WithJournal(j))
	outcomes := r.Run(ctx)

	var failed int
	for _, o := range outcomes {
		status := string(o.Action)
		if o.Err != nil {
			failed++
			status = fmt.Sprintf("failed: %v", o.Err)
		}
		fmt.Printf("%s\t%s\n", o.Repository, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(outcomes))
	}
	return nil
}

func runWebhooksDelete(ctx context.Context, cfg *config.Config) error {
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	whc := bitbucket.NewWebhookClient(client, CLI.Webhooks.Delete.Project, CLI.Webhooks.Delete.Repo)
	if err := whc.Delete(ctx, CLI.Webhooks.Delete.ID); err != nil {
		return err
	}
	fmt.Printf("deleted webhook %d\n", CLI.Webhooks.Delete.ID)
	return nil
}

func runReposList(ctx context.Context, cfg *config.Config) error {
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	rc := bitbucket.NewRepositoryClient(client, CLI.Repos.List.Project)
	seq, err := rc.Search(ctx, CLI.Repos.List.Filter)
	if err != nil {
		return err
	}

	for {
		repo, ok, err := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Printf("%s/%s\t%s\tpublic=%t\n", repo.Project.Key, repo.Slug, repo.State, repo.Public)
	}
}

func runProjectsList(ctx context.Context, cfg *config.Config) error {
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	pc := bitbucket.NewProjectClient(client)
	seq, err := pc.Search(ctx, CLI.Projects.List.Name)
	if err != nil {
		return err
	}

	for {
		project, ok, err := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Printf("%s\t%s\tpublic=%t\n", project.Key, project.Name, project.Public)
	}
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	executor := bitbucket.NewHTTPRequestExecutor(bitbucket.WithRecorder(recorder))
	client, err := buildClientWithExecutor(cfg, executor, recorder)
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Daemon.JournalPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	r := reconcile.New(client, cfg.Webhook, cfg.Repositories,
		reconcile.WithJournal(j),
		reconcile.WithRecorder(recorder))

	daemon, err := reconcile.NewDaemon(r, cfg.Daemon.IntervalDuration())
	if err != nil {
		return err
	}
	if err := daemon.Start(ctx); err != nil {
		return err
	}

	if addr := CLI.Daemon.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	<-ctx.Done()
	return daemon.Stop()
}

func runJournal(ctx context.Context, cfg *config.Config) error {
	j, err := journal.Open(cfg.Daemon.JournalPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(ctx, CLI.Journal.Limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\twebhook=%d\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Repository, e.Action, e.WebhookID, e.Detail)
	}
	return nil
}

// buildClientWithExecutor is buildClient with an injected executor and
// page-fetch recorder (used by the daemon for metrics).
func buildClientWithExecutor(cfg *config.Config, executor bitbucket.RequestExecutor, recorder metrics.Recorder) (*bitbucket.Client, error) {
	return bitbucket.NewClient(bitbucket.APIURL(cfg.Server.BaseURL), credentialsFor(cfg), executor,
		bitbucket.WithPageFetchRecorder(recorder))
}
