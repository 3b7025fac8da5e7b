package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtflow/internal/thought"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestHashContent(t *testing.T) {
	assert.Equal(t, HashContent("Buy milk"), HashContent("Buy milk"))
	assert.NotEqual(t, HashContent("Buy milk"), HashContent("Buy milk "))
	assert.Len(t, HashContent(""), 64)
}

func TestLedger_RecordAndSeen(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	hash := HashContent("Buy milk")
	seen, err := l.Seen(ctx, hash, "/inbox/milk.txt")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Record(ctx, Entry{
		ThoughtID:   "thought_1",
		ContentHash: hash,
		SourcePath:  "/inbox/milk.txt",
		OutputPath:  "/out/processed_thought_1.json",
		Stages:      []string{"capture", "connect"},
	}))

	seen, err = l.Seen(ctx, hash, "/inbox/milk.txt")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = l.Seen(ctx, hash, "/inbox/other.txt")
	require.NoError(t, err)
	assert.False(t, seen, "same content under another name is new")

	seen, err = l.Seen(ctx, HashContent("Buy oat milk"), "/inbox/milk.txt")
	require.NoError(t, err)
	assert.False(t, seen, "edited file is new")

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLedger_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.Record(ctx, Entry{
			ThoughtID:   id,
			ContentHash: HashContent(id),
			Stages:      []string{"capture"},
			ProcessedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ThoughtID)
	assert.Equal(t, "b", entries[1].ThoughtID)
	assert.True(t, entries[0].ProcessedAt.Equal(t0.Add(2*time.Minute)))
	assert.Equal(t, []string{"capture"}, entries[0].Stages)

	all, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLedger_RecentOrdersWithinASecond(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	sec := time.Date(2024, 5, 1, 9, 0, 5, 0, time.UTC)
	times := map[string]time.Time{
		"whole":  sec,
		"older":  sec.Add(100 * time.Millisecond),
		"newer":  sec.Add(120 * time.Millisecond),
		"newest": sec.Add(120*time.Millisecond + time.Nanosecond),
	}
	for id, at := range times {
		require.NoError(t, l.Record(ctx, Entry{ThoughtID: id, ContentHash: HashContent(id), ProcessedAt: at}))
	}

	entries, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ThoughtID)
		assert.True(t, e.ProcessedAt.Equal(times[e.ThoughtID]), e.ThoughtID)
	}
	assert.Equal(t, []string{"newest", "newer", "older", "whole"}, ids)

	latest, err := l.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "newest", latest[0].ThoughtID)
}

func TestLedger_RecordReplacesSameID(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	require.NoError(t, l.Record(ctx, Entry{ThoughtID: "x", ContentHash: HashContent("v1")}))
	require.NoError(t, l.Record(ctx, Entry{ThoughtID: "x", ContentHash: HashContent("v2"), OutputPath: "/o.json"}))

	entries, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/o.json", entries[0].OutputPath)
	assert.False(t, entries[0].ProcessedAt.IsZero())
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, Entry{ThoughtID: "p", ContentHash: HashContent("persist"), SourcePath: "/inbox/p.txt"}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, path, l.Path())

	seen, err := l.Seen(ctx, HashContent("persist"), "/inbox/p.txt")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestEntryFor(t *testing.T) {
	rec := thought.New("Buy milk", "/inbox/milk.txt")
	rec.SetResult("Capture", "x")
	rec.SetResult("connect", "y")
	rec.Content = "threaded output"

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	e := EntryFor(rec, "/out/p.json", at)

	assert.Equal(t, rec.ID, e.ThoughtID)
	assert.Equal(t, HashContent("Buy milk"), e.ContentHash)
	assert.Equal(t, "/inbox/milk.txt", e.SourcePath)
	assert.Equal(t, []string{"capture", "connect"}, e.Stages)
	assert.Equal(t, at, e.ProcessedAt)
}
