package bitbucket

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"git.home.luguber.info/inful/stashhook/internal/foundation/errors"
)

// Webhook is a server-materialized webhook. ID is assigned by the server and
// only present after creation or fetch. Additional server fields are ignored.
type Webhook struct {
	ID     int      `json:"id,omitempty"`
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

// HasEvent reports whether the webhook subscribes to the given event.
func (w *Webhook) HasEvent(event string) bool {
	return slices.Contains(w.Events, event)
}

// WebhookRequest is the write-side projection of a webhook. Construct it
// through NewWebhookRequest; a request always carries at least one event.
type WebhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

// WebhookRequestBuilder assembles a WebhookRequest. Name and URL are
// optional; Active defaults to true.
type WebhookRequestBuilder struct {
	request WebhookRequest
}

// NewWebhookRequest starts a builder subscribed to the given events.
func NewWebhookRequest(events ...string) *WebhookRequestBuilder {
	return &WebhookRequestBuilder{
		request: WebhookRequest{
			Events: slices.Clone(events),
			Active: true,
		},
	}
}

// WithName sets the webhook display name.
func (b *WebhookRequestBuilder) WithName(name string) *WebhookRequestBuilder {
	b.request.Name = name
	return b
}

// WithCallback sets the callback URL the server will POST events to.
func (b *WebhookRequestBuilder) WithCallback(callbackURL string) *WebhookRequestBuilder {
	b.request.URL = callbackURL
	return b
}

// WithActive toggles whether the webhook is active on creation.
func (b *WebhookRequestBuilder) WithActive(active bool) *WebhookRequestBuilder {
	b.request.Active = active
	return b
}

// Build validates and returns the request. An empty event set is rejected
// here, before any network call is made.
func (b *WebhookRequestBuilder) Build() (WebhookRequest, error) {
	if len(b.request.Events) == 0 {
		return WebhookRequest{}, errors.StateError("webhook request requires at least one event").Build()
	}
	for _, event := range b.request.Events {
		if event == "" {
			return WebhookRequest{}, errors.StateError("webhook event name must not be empty").Build()
		}
	}
	return b.request, nil
}

// WebhookClient manages webhooks for a single repository. The
// (projectKey, repoSlug) scope is immutable per instance and used to build
// every request URL.
type WebhookClient struct {
	client  *Client
	project string
	repo    string
}

// NewWebhookClient creates a webhook client scoped to a repository.
func NewWebhookClient(client *Client, projectKey, repoSlug string) *WebhookClient {
	return &WebhookClient{client: client, project: projectKey, repo: repoSlug}
}

func (w *WebhookClient) resource() string {
	return fmt.Sprintf("projects/%s/repos/%s/webhooks", w.project, w.repo)
}

// List returns a lazy stream of the repository's webhooks, optionally
// narrowed to those subscribed to any of the given events. Each filter is
// sent as its own event= query parameter in call order; with no filters the
// parameter is omitted entirely, meaning all events. The first page is
// fetched here; further pages are fetched as the stream is consumed.
func (w *WebhookClient) List(ctx context.Context, events ...string) (*Seq[Webhook], error) {
	var query url.Values
	if len(events) > 0 {
		query = make(url.Values, 1)
		for _, event := range events {
			query.Add("event", event)
		}
	}

	var first Page[Webhook]
	if err := w.client.Get(ctx, w.resource(), query, &first); err != nil {
		return nil, err
	}
	w.client.recorder.IncPageFetch("webhooks")

	return newSeq(&first, NewNextPageFetcher[Webhook](w.client, w.resource(), query, "webhooks")), nil
}

// Register creates a webhook and returns the server-materialized result,
// including the assigned ID. Server-side rejections (missing URL, malformed
// events) propagate as validation errors.
func (w *WebhookClient) Register(ctx context.Context, request WebhookRequest) (*Webhook, error) {
	var created Webhook
	if err := w.client.Post(ctx, w.resource(), request, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the configuration of an existing webhook.
func (w *WebhookClient) Update(ctx context.Context, id int, request WebhookRequest) (*Webhook, error) {
	var updated Webhook
	if err := w.client.Put(ctx, fmt.Sprintf("%s/%d", w.resource(), id), request, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a webhook by ID.
func (w *WebhookClient) Delete(ctx context.Context, id int) error {
	return w.client.Delete(ctx, fmt.Sprintf("%s/%d", w.resource(), id))
}

// Find scans the webhook stream for the first webhook with the given name,
// optionally narrowed by event filters. found is false when no webhook
// matches.
func (w *WebhookClient) Find(ctx context.Context, name string, events ...string) (hook *Webhook, found bool, err error) {
	seq, err := w.List(ctx, events...)
	if err != nil {
		return nil, false, err
	}
	for {
		candidate, ok, err := seq.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		if candidate.Name == name {
			return &candidate, true, nil
		}
	}
}
