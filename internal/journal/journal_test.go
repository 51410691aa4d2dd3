package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndQueryByRepository(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Append(ctx, "PROJ/alpha", ActionCreated, 17, "registered ci-callback"))
	require.NoError(t, j.Append(ctx, "PROJ/alpha", ActionUnchanged, 17, ""))
	require.NoError(t, j.Append(ctx, "PROJ/beta", ActionFailed, 0, "401 from server"))

	entries, err := j.ByRepository(ctx, "PROJ/alpha")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Insertion order preserved.
	assert.Equal(t, ActionCreated, entries[0].Action)
	assert.Equal(t, ActionUnchanged, entries[1].Action)
	assert.Equal(t, 17, entries[0].WebhookID)
	assert.Equal(t, "registered ci-callback", entries[0].Detail)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	require.NoError(t, j.Append(ctx, "PROJ/alpha", ActionCreated, 1, ""))
	require.NoError(t, j.Append(ctx, "PROJ/beta", ActionCreated, 2, ""))
	require.NoError(t, j.Append(ctx, "PROJ/gamma", ActionCreated, 3, ""))

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "PROJ/gamma", entries[0].Repository)
	assert.Equal(t, "PROJ/beta", entries[1].Repository)
}

func TestEmptyJournal(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileBackedJournalPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, "PROJ/alpha", ActionUpdated, 5, "callback url changed"))
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.ByRepository(ctx, "PROJ/alpha")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionUpdated, entries[0].Action)
}
