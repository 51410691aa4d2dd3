// Package reconcile keeps the desired CI callback webhook registered on
// every configured repository: it creates the webhook when absent, updates
// it when its callback or events drift, and leaves it alone otherwise.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/stashhook/internal/bitbucket"
	"git.home.luguber.info/inful/stashhook/internal/config"
	"git.home.luguber.info/inful/stashhook/internal/journal"
	"git.home.luguber.info/inful/stashhook/internal/logfields"
	"git.home.luguber.info/inful/stashhook/internal/metrics"
)

// Outcome describes what a reconcile pass did to one repository.
type Outcome struct {
	Repository string
	Action     journal.Action
	WebhookID  int
	Err        error
}

// Reconciler ensures webhooks across the configured repositories.
type Reconciler struct {
	client   *bitbucket.Client
	desired  config.WebhookConfig
	repos    []config.Repository
	journal  *journal.Journal
	recorder metrics.Recorder
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithJournal records every outcome to an audit journal.
func WithJournal(j *journal.Journal) Option {
	return func(r *Reconciler) { r.journal = j }
}

// WithRecorder installs a metrics recorder for reconcile outcomes.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

// New creates a reconciler for the given client, desired webhook, and
// repository list.
func New(client *bitbucket.Client, desired config.WebhookConfig, repos []config.Repository, opts ...Option) *Reconciler {
	r := &Reconciler{
		client:   client,
		desired:  desired,
		repos:    repos,
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles every configured repository. Failures on one repository do
// not stop the pass; each outcome carries its own error.
func (r *Reconciler) Run(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, len(r.repos))
	for _, repo := range r.repos {
		outcome := r.reconcileRepo(ctx, repo)
		outcomes = append(outcomes, outcome)

		r.recorder.IncReconcileOutcome(outcomeLabel(outcome))
		r.record(ctx, outcome)

		if outcome.Err != nil {
			slog.Warn("webhook reconcile failed",
				logfields.Repository(outcome.Repository),
				logfields.Error(outcome.Err))
		} else {
			slog.Debug("webhook reconciled",
				logfields.Repository(outcome.Repository),
				logfields.Action(string(outcome.Action)),
				logfields.WebhookID(outcome.WebhookID))
		}
	}
	return outcomes
}

// EnsureWebhook reconciles a single repository's webhook: find by name,
// create if absent, update if the callback URL or event set differs.
func (r *Reconciler) EnsureWebhook(ctx context.Context, repo config.Repository) (journal.Action, *bitbucket.Webhook, error) {
	whc := bitbucket.NewWebhookClient(r.client, repo.Project, repo.Slug)

	existing, found, err := whc.Find(ctx, r.desired.Name)
	if err != nil {
		return journal.ActionFailed, nil, err
	}

	request, err := bitbucket.NewWebhookRequest(r.desired.Events...).
		WithName(r.desired.Name).
		WithCallback(r.desired.CallbackURL).
		Build()
	if err != nil {
		return journal.ActionFailed, nil, err
	}

	if !found {
		created, err := whc.Register(ctx, request)
		if err != nil {
			return journal.ActionFailed, nil, err
		}
		return journal.ActionCreated, created, nil
	}

	if r.matchesDesired(existing) {
		return journal.ActionUnchanged, existing, nil
	}

	updated, err := whc.Update(ctx, existing.ID, request)
	if err != nil {
		return journal.ActionFailed, nil, err
	}
	return journal.ActionUpdated, updated, nil
}

func (r *Reconciler) matchesDesired(hook *bitbucket.Webhook) bool {
	if hook.URL != r.desired.CallbackURL || !hook.Active {
		return false
	}
	if len(hook.Events) != len(r.desired.Events) {
		return false
	}
	events := slices.Clone(hook.Events)
	desired := slices.Clone(r.desired.Events)
	slices.Sort(events)
	slices.Sort(desired)
	return slices.Equal(events, desired)
}

func (r *Reconciler) reconcileRepo(ctx context.Context, repo config.Repository) Outcome {
	outcome := Outcome{Repository: repoKey(repo)}

	action, hook, err := r.EnsureWebhook(ctx, repo)
	outcome.Action = action
	outcome.Err = err
	if hook != nil {
		outcome.WebhookID = hook.ID
	}
	return outcome
}

func (r *Reconciler) record(ctx context.Context, outcome Outcome) {
	if r.journal == nil {
		return
	}
	detail := ""
	if outcome.Err != nil {
		detail = outcome.Err.Error()
	}
	if err := r.journal.Append(ctx, outcome.Repository, outcome.Action, outcome.WebhookID, detail); err != nil {
		slog.Warn("failed to record reconcile outcome",
			logfields.Repository(outcome.Repository), logfields.Error(err))
	}
}

func outcomeLabel(outcome Outcome) metrics.ReconcileOutcome {
	if outcome.Err != nil {
		return metrics.OutcomeFailed
	}
	switch outcome.Action {
	case journal.ActionCreated:
		return metrics.OutcomeCreated
	case journal.ActionUpdated:
		return metrics.OutcomeUpdated
	default:
		return metrics.OutcomeUnchanged
	}
}

func repoKey(repo config.Repository) string {
	return fmt.Sprintf("%s/%s", repo.Project, repo.Slug)
}
