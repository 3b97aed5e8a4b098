// Package tradelog appends trade cycle events to a JSONL file, one
// self-contained record per line.
package tradelog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"contango-scanner/internal/venue"
)

// DefaultPath is the default event log location.
const DefaultPath = "trade_cycles.jsonl"

// Event is one entry or exit record. Portions and Execution carry the
// per-portion PnL breakdown and the executor payload verbatim.
type Event struct {
	Event           string      `json:"event"`
	Timestamp       float64     `json:"timestamp"`
	Base            string      `json:"base"`
	SpotExchange    venue.ID    `json:"spot_exchange"`
	FuturesExchange venue.ID    `json:"futures_exchange"`
	USD             float64     `json:"usd"`
	SpreadPct       float64     `json:"spread_pct"`
	NetPct          float64     `json:"net_pct"`
	FundingRate     float64     `json:"funding_rate"`
	PnlUSD          *float64    `json:"pnl_usd,omitempty"`
	Portions        interface{} `json:"portions,omitempty"`
	Execution       interface{} `json:"execution,omitempty"`
}

// Writer is an append-only JSONL writer.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open opens or creates the log file for appending.
func Open(path string) (*Writer, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one event as a single line.
func (w *Writer) Append(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.Timestamp == 0 {
		e.Timestamp = venue.Now()
	}
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("append trade log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}
