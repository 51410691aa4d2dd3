package bitbucket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stashhook/internal/foundation/errors"
)

const webhookListFixture = `{
	"size": 2,
	"limit": 25,
	"isLastPage": true,
	"start": 0,
	"values": [
		{"id": 1, "name": "w1", "url": "http://localhost:8090", "events": ["repo:refs_changed"], "active": true, "configuration": {}},
		{"id": 2, "name": "w2", "url": "http://localhost:8090", "events": ["repo:refs_changed", "mirror:repo_synchronized"], "active": true, "configuration": {}}
	]
}`

func TestWebhookRequestBuilder(t *testing.T) {
	t.Run("requires at least one event", func(t *testing.T) {
		_, err := NewWebhookRequest().Build()
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryState))
	})

	t.Run("rejects empty event names", func(t *testing.T) {
		_, err := NewWebhookRequest("repo:refs_changed", "").Build()
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryState))
	})

	t.Run("active defaults to true", func(t *testing.T) {
		req, err := NewWebhookRequest("repo:refs_changed").Build()
		require.NoError(t, err)
		assert.True(t, req.Active)
		assert.Empty(t, req.Name)
		assert.Empty(t, req.URL)
	})

	t.Run("full request", func(t *testing.T) {
		req, err := NewWebhookRequest("repo:refs_changed", "mirror:repo_synchronized").
			WithName("ci-callback").
			WithCallback("http://localhost:8090/webhook").
			WithActive(false).
			Build()
		require.NoError(t, err)
		assert.Equal(t, "ci-callback", req.Name)
		assert.Equal(t, "http://localhost:8090/webhook", req.URL)
		assert.Equal(t, []string{"repo:refs_changed", "mirror:repo_synchronized"}, req.Events)
		assert.False(t, req.Active)
	})
}

func TestWebhookClientList(t *testing.T) {
	var gotPath string
	var gotEvents []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotEvents = r.URL.Query()["event"]
		_, _ = w.Write([]byte(webhookListFixture))
	}))

	whc := NewWebhookClient(client, "PROJ", "repo")
	seq, err := whc.List(context.Background())
	require.NoError(t, err)

	hooks, err := seq.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/rest/api/1.0/projects/PROJ/repos/repo/webhooks", gotPath)
	assert.Nil(t, gotEvents, "no filter should mean no event parameter at all")

	require.Len(t, hooks, 2)
	assert.Equal(t, "w1", hooks[0].Name)
	assert.Equal(t, "w2", hooks[1].Name)
	for _, h := range hooks {
		assert.Equal(t, "http://localhost:8090", h.URL)
		assert.True(t, h.Active)
	}
}

func TestWebhookClientListWithFilters(t *testing.T) {
	var gotEvents []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvents = r.URL.Query()["event"]
		_, _ = w.Write([]byte(webhookListFixture))
	}))

	whc := NewWebhookClient(client, "PROJ", "repo")
	seq, err := whc.List(context.Background(), "repo:refs_changed", "mirror:repo_synchronized")
	require.NoError(t, err)

	hooks, err := seq.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, hooks, 2)

	assert.Equal(t, []string{"repo:refs_changed", "mirror:repo_synchronized"}, gotEvents)

	events := make(map[string]bool)
	for _, h := range hooks {
		for _, e := range h.Events {
			events[e] = true
		}
	}
	assert.True(t, events["repo:refs_changed"])
	assert.True(t, events["mirror:repo_synchronized"])
}

func TestWebhookClientRegister(t *testing.T) {
	var gotMethod string
	var gotBody WebhookRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": 17,
			"name": "ci-callback",
			"url": "http://localhost:8090/webhook",
			"events": ["repo:refs_changed", "mirror:repo_synchronized"],
			"active": true
		}`))
	}))

	req, err := NewWebhookRequest("repo:refs_changed", "mirror:repo_synchronized").
		WithName("ci-callback").
		WithCallback("http://localhost:8090/webhook").
		Build()
	require.NoError(t, err)

	whc := NewWebhookClient(client, "PROJ", "repo")
	created, err := whc.Register(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "ci-callback", gotBody.Name)
	assert.Equal(t, []string{"repo:refs_changed", "mirror:repo_synchronized"}, gotBody.Events)
	assert.True(t, gotBody.Active)

	assert.Equal(t, 17, created.ID)
	assert.ElementsMatch(t, []string{"repo:refs_changed", "mirror:repo_synchronized"}, created.Events)
}

func TestWebhookClientRegisterPropagatesValidationError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"context":"url","message":"A webhook URL must be set","exceptionName":"ServerValidationException"}]}`))
	}))

	req, err := NewWebhookRequest("repo:refs_changed").Build()
	require.NoError(t, err)

	whc := NewWebhookClient(client, "PROJ", "repo")
	_, err = whc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestWebhookClientUpdateAndDelete(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id": 17, "name": "ci-callback", "url": "http://localhost:9999/webhook", "events": ["repo:refs_changed"], "active": true}`))
	}))

	whc := NewWebhookClient(client, "PROJ", "repo")

	req, err := NewWebhookRequest("repo:refs_changed").
		WithName("ci-callback").
		WithCallback("http://localhost:9999/webhook").
		Build()
	require.NoError(t, err)

	updated, err := whc.Update(context.Background(), 17, req)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/rest/api/1.0/projects/PROJ/repos/repo/webhooks/17", gotPath)
	assert.Equal(t, "http://localhost:9999/webhook", updated.URL)

	require.NoError(t, whc.Delete(context.Background(), 17))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/rest/api/1.0/projects/PROJ/repos/repo/webhooks/17", gotPath)
}

func TestWebhookClientFind(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(webhookListFixture))
	}))

	whc := NewWebhookClient(client, "PROJ", "repo")

	hook, found, err := whc.Find(context.Background(), "w2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, hook.ID)
	assert.True(t, hook.HasEvent("mirror:repo_synchronized"))

	_, found, err = whc.Find(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}
