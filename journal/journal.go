// Package journal appends mechanism outcomes to zstd-compressed JSONL files,
// one file per UTC hour.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

const (
	filePrefix = "outcomes"
	fileSuffix = ".jsonl.zst"
	hourLayout = "2006-01-02-15"
)

// Entry is one journaled mechanism run.
type Entry struct {
	RunID           string                   `json:"run_id"`
	AuctionID       string                   `json:"auction_id"`
	RecordedAt      time.Time                `json:"recorded_at"`
	TieBreak        string                   `json:"tie_break"`
	Bids            int                      `json:"bids"`
	Welfare         float64                  `json:"welfare"`
	Awards          []auctionapi.Award       `json:"awards"`
	Excluded        []auctionapi.ExcludedBid `json:"excluded,omitempty"`
	ReserveRejected []auctionapi.ExcludedBid `json:"reserve_rejected,omitempty"`
}

// Writer appends entries, rotating to a new file when the UTC hour changes.
// Safe for concurrent use.
type Writer struct {
	baseDir string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir, now: time.Now}
}

// Write appends e as one JSON line and flushes it through the encoder.
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	if e.RecordedAt.IsZero() {
		e.RecordedAt = now
	}

	hour := now.Format(hourLayout)
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Path returns the file entries recorded at t are written to.
func (w *Writer) Path(t time.Time) string {
	return w.pathForHour(t.UTC().Format(hourLayout))
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s%s", filePrefix, hour, fileSuffix))
}

// ReadFile decodes every entry of one journal file. Files written across
// several sessions hold several zstd frames; all are read.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var entries []Entry
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// Files lists the journal files in dir, oldest first.
func Files(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix+"-") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}
