package tradelog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contango-scanner/internal/venue"
)

func TestAppendOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_cycles.jsonl")
	w, err := Open(path)
	require.NoError(t, err)

	pnl := 1.25
	require.NoError(t, w.Append(Event{
		Event:           "entry",
		Timestamp:       1700000000,
		Base:            "BTC",
		SpotExchange:    venue.Upbit,
		FuturesExchange: venue.OKX,
		USD:             50,
		SpreadPct:       1.5,
	}))
	require.NoError(t, w.Append(Event{
		Event:           "exit",
		Timestamp:       1700000100,
		Base:            "BTC",
		SpotExchange:    venue.Upbit,
		FuturesExchange: venue.OKX,
		USD:             50,
		PnlUSD:          &pnl,
	}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry, exit Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &exit))
	assert.Equal(t, "entry", entry.Event)
	assert.Equal(t, venue.Upbit, entry.SpotExchange)
	assert.Nil(t, entry.PnlUSD)
	assert.Equal(t, "exit", exit.Event)
	require.NotNil(t, exit.PnlUSD)
	assert.Equal(t, 1.25, *exit.PnlUSD)
}

func TestAppendStampsTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(Event{Event: "entry", Base: "ETH"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Greater(t, e.Timestamp, 0.0)
}

func TestOpenAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(Event{Event: "entry", Base: "BTC", Timestamp: 1}))
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(Event{Event: "exit", Base: "BTC", Timestamp: 2}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}
