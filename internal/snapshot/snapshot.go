// Package snapshot writes the dashboard state to a JSON file that a static
// page can poll.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"

	"github.com/Zachdehooge/lsr-dashboard/internal/feed"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
	"github.com/Zachdehooge/lsr-dashboard/internal/urlcodec"
)

// Payload is the full structure written on every reload.
type Payload struct {
	State        state.Snapshot `json:"state"`
	Query        string         `json:"query"`
	LSRURL       string         `json:"lsrUrl"`
	SBWURL       string         `json:"sbwUrl"`
	LastUpdated  string         `json:"lastUpdated"`
	Counter      int            `json:"counter"`
	UpdatedAtUTC int64          `json:"updatedAtUTC"`
}

// Writer replaces a file atomically so readers never see a partial write.
type Writer struct {
	path    string
	counter int
	now     func() time.Time
}

// NewWriter returns a writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path, now: time.Now}
}

// Path returns the output file.
func (w *Writer) Path() string {
	return w.path
}

// Build assembles the payload for snap without writing it.
func (w *Writer) Build(snap state.Snapshot) Payload {
	now := w.now().UTC()
	return Payload{
		State:        snap,
		Query:        urlcodec.EncodeQuery(snap),
		LSRURL:       feed.GeoJSONURL(feed.KindLSR, snap),
		SBWURL:       feed.GeoJSONURL(feed.KindWatchWarn, snap),
		LastUpdated:  now.Format("Jan 2, 2006 at 15:04:05 UTC"),
		Counter:      w.counter + 1,
		UpdatedAtUTC: now.Unix(),
	}
}

// Write encodes snap and replaces the output file.
func (w *Writer) Write(snap state.Snapshot) error {
	payload := w.Build(snap)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	if err := atomic.WriteFile(w.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s failed: %w", w.path, err)
	}
	w.counter = payload.Counter
	return nil
}
