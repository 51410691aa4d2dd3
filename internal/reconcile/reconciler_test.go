package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stashhook/internal/bitbucket"
	"git.home.luguber.info/inful/stashhook/internal/config"
	"git.home.luguber.info/inful/stashhook/internal/journal"
)

// fakeServer simulates the webhook resource of a single repository.
type fakeServer struct {
	hooks   []bitbucket.Webhook
	nextID  int
	posts   int
	puts    int
	mux     *http.ServeMux
	baseURL string
}

func newFakeServer(t *testing.T, existing ...bitbucket.Webhook) *fakeServer {
	t.Helper()
	f := &fakeServer{hooks: existing, nextID: 100}
	f.mux = http.NewServeMux()

	f.mux.HandleFunc("GET /rest/api/1.0/projects/PROJ/repos/alpha/webhooks", func(w http.ResponseWriter, r *http.Request) {
		page := bitbucket.Page[bitbucket.Webhook]{
			Size:       len(f.hooks),
			Limit:      25,
			IsLastPage: true,
			Values:     f.hooks,
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	f.mux.HandleFunc("POST /rest/api/1.0/projects/PROJ/repos/alpha/webhooks", func(w http.ResponseWriter, r *http.Request) {
		f.posts++
		var req bitbucket.WebhookRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		hook := bitbucket.Webhook{ID: f.nextID, Name: req.Name, URL: req.URL, Events: req.Events, Active: req.Active}
		f.nextID++
		f.hooks = append(f.hooks, hook)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(hook)
	})
	f.mux.HandleFunc("PUT /rest/api/1.0/projects/PROJ/repos/alpha/webhooks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.puts++
		var req bitbucket.WebhookRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for i := range f.hooks {
			if f.hooks[i].Name == req.Name {
				f.hooks[i].URL = req.URL
				f.hooks[i].Events = req.Events
				f.hooks[i].Active = req.Active
				_ = json.NewEncoder(w).Encode(f.hooks[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	f.baseURL = srv.URL
	return f
}

func desiredWebhook() config.WebhookConfig {
	return config.WebhookConfig{
		Name:        "ci-callback",
		CallbackURL: "http://ci.example.com/bitbucket-hook",
		Events:      []string{"repo:refs_changed", "mirror:repo_synchronized"},
	}
}

func newReconciler(t *testing.T, f *fakeServer, opts ...Option) *Reconciler {
	t.Helper()
	client, err := bitbucket.NewClient(bitbucket.APIURL(f.baseURL), bitbucket.Anonymous, nil)
	require.NoError(t, err)
	repos := []config.Repository{{Project: "PROJ", Slug: "alpha"}}
	return New(client, desiredWebhook(), repos, opts...)
}

func TestEnsureWebhookCreatesWhenAbsent(t *testing.T) {
	f := newFakeServer(t)
	r := newReconciler(t, f)

	outcomes := r.Run(context.Background())
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, journal.ActionCreated, outcomes[0].Action)
	assert.Equal(t, 100, outcomes[0].WebhookID)
	assert.Equal(t, 1, f.posts)
	assert.Equal(t, 0, f.puts)
}

func TestEnsureWebhookUpdatesOnDrift(t *testing.T) {
	f := newFakeServer(t, bitbucket.Webhook{
		ID:     7,
		Name:   "ci-callback",
		URL:    "http://old.example.com/hook",
		Events: []string{"repo:refs_changed"},
		Active: true,
	})
	r := newReconciler(t, f)

	outcomes := r.Run(context.Background())
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, journal.ActionUpdated, outcomes[0].Action)
	assert.Equal(t, 0, f.posts)
	assert.Equal(t, 1, f.puts)
	assert.Equal(t, "http://ci.example.com/bitbucket-hook", f.hooks[0].URL)
}

func TestEnsureWebhookNoopsWhenIdentical(t *testing.T) {
	f := newFakeServer(t, bitbucket.Webhook{
		ID:   7,
		Name: "ci-callback",
		URL:  "http://ci.example.com/bitbucket-hook",
		// Event order differs from desired; sets are compared, not slices.
		Events: []string{"mirror:repo_synchronized", "repo:refs_changed"},
		Active: true,
	})
	r := newReconciler(t, f)

	outcomes := r.Run(context.Background())
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, journal.ActionUnchanged, outcomes[0].Action)
	assert.Equal(t, 0, f.posts)
	assert.Equal(t, 0, f.puts)
}

func TestRunRecordsToJournal(t *testing.T) {
	f := newFakeServer(t)
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	r := newReconciler(t, f, WithJournal(j))
	r.Run(context.Background())

	entries, err := j.ByRepository(context.Background(), "PROJ/alpha")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.ActionCreated, entries[0].Action)
	assert.Equal(t, 100, entries[0].WebhookID)
}

func TestRunContinuesPastFailures(t *testing.T) {
	f := newFakeServer(t)
	client, err := bitbucket.NewClient(bitbucket.APIURL(f.baseURL), bitbucket.Anonymous, nil)
	require.NoError(t, err)

	repos := []config.Repository{
		{Project: "NOPE", Slug: "missing"}, // no route: 404
		{Project: "PROJ", Slug: "alpha"},
	}
	r := New(client, desiredWebhook(), repos)

	outcomes := r.Run(context.Background())
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.Equal(t, journal.ActionFailed, outcomes[0].Action)
	require.NoError(t, outcomes[1].Err)
	assert.Equal(t, journal.ActionCreated, outcomes[1].Action)
}
