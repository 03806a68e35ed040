package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC)

	w := NewWriter(dir)
	w.now = fixedClock(&now)

	entry := Entry{
		RunID:     "run-1",
		AuctionID: "auction-1",
		TieBreak:  "latest",
		Bids:      3,
		Welfare:   4,
		Awards: []auctionapi.Award{
			{Bidder: "a", Bundles: [][]string{}},
			{Bidder: "b", Bundles: [][]string{{"A"}}, Value: 2, Payment: 1, WelfareWithout: 3},
		},
		ReserveRejected: []auctionapi.ExcludedBid{{Bidder: "c", Items: []string{"B"}, Reason: "below_reserve"}},
	}
	require.NoError(t, w.Write(entry))
	require.NoError(t, w.Write(Entry{RunID: "run-2", AuctionID: "auction-2"}))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "outcomes-2026-05-04-10.jsonl.zst")
	assert.Equal(t, path, w.Path(now))

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "run-1", entries[0].RunID)
	assert.True(t, entries[0].RecordedAt.Equal(now))
	assert.Equal(t, entry.Awards, entries[0].Awards)
	assert.Equal(t, entry.ReserveRejected, entries[0].ReserveRejected)
	assert.Equal(t, "run-2", entries[1].RunID)
}

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 4, 10, 59, 0, 0, time.UTC)

	w := NewWriter(dir)
	w.now = fixedClock(&now)

	require.NoError(t, w.Write(Entry{RunID: "first"}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, w.Write(Entry{RunID: "second"}))
	require.NoError(t, w.Close())

	files, err := Files(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "outcomes-2026-05-04-10.jsonl.zst", filepath.Base(files[0]))
	assert.Equal(t, "outcomes-2026-05-04-11.jsonl.zst", filepath.Base(files[1]))

	second, err := ReadFile(files[1])
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "second", second[0].RunID)
}

func TestWriter_AppendsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for _, id := range []string{"one", "two"} {
		w := NewWriter(dir)
		w.now = fixedClock(&now)
		require.NoError(t, w.Write(Entry{RunID: id}))
		require.NoError(t, w.Close())
	}

	entries, err := ReadFile(filepath.Join(dir, "outcomes-2026-05-04-10.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].RunID)
	assert.Equal(t, "two", entries[1].RunID)
}

func TestFiles_IgnoresOtherNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "outcomes-sub.jsonl.zst"), 0o755))

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = ReadFile(filepath.Join(dir, "missing.jsonl.zst"))
	assert.Error(t, err)
}
