package persist

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// TraceLog appends audit rows to hourly zstd-compressed JSONL files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type TraceLog struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewTraceLog(dir, prefix string) *TraceLog {
	return &TraceLog{dir: dir, prefix: prefix, now: time.Now}
}

// WriteBatch appends rows and flushes them through the encoder. The file for
// the current hour is opened on demand.
func (t *TraceLog) WriteBatch(_ context.Context, rows []AuditRow) error {
	if len(rows) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	hour := t.now().UTC().Format("2006-01-02-15")
	if hour != t.curHour {
		if err := t.rotateLocked(hour); err != nil {
			return fmt.Errorf("trace log rotate: %w", err)
		}
	}
	enc := json.NewEncoder(t.w)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return fmt.Errorf("trace log encode: %w", err)
		}
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("trace log flush: %w", err)
	}
	return t.enc.Flush()
}

func (t *TraceLog) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *TraceLog) rotateLocked(hour string) error {
	if err := t.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(t.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	t.f, t.enc, t.w = f, enc, bufio.NewWriterSize(enc, 64*1024)
	t.curHour = hour
	return nil
}

func (t *TraceLog) closeLocked() error {
	var err error
	if t.w != nil {
		err = t.w.Flush()
	}
	if t.enc != nil {
		if cerr := t.enc.Close(); err == nil {
			err = cerr
		}
	}
	if t.f != nil {
		if cerr := t.f.Close(); err == nil {
			err = cerr
		}
	}
	t.f, t.enc, t.w = nil, nil, nil
	t.curHour = ""
	return err
}

func (t *TraceLog) pathForHour(hour string) string {
	return filepath.Join(t.dir, fmt.Sprintf("%s-%s.jsonl.zst", t.prefix, hour))
}

// ReadTraceFile decodes every row of one trace file. Files appended to after
// a restart hold several zstd frames; the decoder reads them in sequence.
func ReadTraceFile(path string) ([]AuditRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("trace decoder: %w", err)
	}
	defer dec.Close()

	var rows []AuditRow
	jd := json.NewDecoder(dec)
	for {
		var row AuditRow
		if err := jd.Decode(&row); err == io.EOF {
			return rows, nil
		} else if err != nil {
			return rows, fmt.Errorf("decode trace %s: %w", path, err)
		}
		rows = append(rows, row)
	}
}
