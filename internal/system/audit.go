package system

import (
	"context"
	"sync/atomic"
	"time"

	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/persist"
	"github.com/aimloc/server/internal/resolve"
	"go.uber.org/zap"
)

// AuditSink stores batches of resolution outcomes. *persist.AuditRepo and
// *persist.TraceLog implement it.
type AuditSink interface {
	WriteBatch(ctx context.Context, rows []persist.AuditRow) error
	Close() error
}

// AuditSystem collects resolution outcomes from any goroutine and writes
// them to the sink every flushTicks ticks. Phase 5 (Persist).
type AuditSystem struct {
	sink       AuditSink
	pending    chan resolve.Record
	flushTicks int
	tick       int
	dropped    atomic.Int64
	batch      []persist.AuditRow
	log        *zap.Logger
}

func NewAuditSystem(sink AuditSink, buffer, flushTicks int, log *zap.Logger) *AuditSystem {
	if buffer <= 0 {
		buffer = 1024
	}
	if flushTicks <= 0 {
		flushTicks = 1
	}
	return &AuditSystem{
		sink:       sink,
		pending:    make(chan resolve.Record, buffer),
		flushTicks: flushTicks,
		batch:      make([]persist.AuditRow, 0, buffer),
		log:        log,
	}
}

// Record implements resolve.Recorder. It never blocks; records arriving
// while the buffer is full are counted and dropped.
func (s *AuditSystem) Record(r resolve.Record) {
	select {
	case s.pending <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *AuditSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AuditSystem) Update(_ time.Duration) {
	s.tick++
	if s.tick < s.flushTicks {
		return
	}
	s.tick = 0
	s.flush()
}

// Close writes what is still buffered and closes the sink.
func (s *AuditSystem) Close() error {
	s.flush()
	return s.sink.Close()
}

func (s *AuditSystem) flush() {
	s.batch = s.batch[:0]
drain:
	for {
		select {
		case r := <-s.pending:
			s.batch = append(s.batch, auditRow(r))
		default:
			break drain
		}
	}
	if n := s.dropped.Swap(0); n > 0 {
		s.log.Warn("audit records dropped", zap.Int64("count", n))
	}
	if len(s.batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.WriteBatch(ctx, s.batch); err != nil {
		s.log.Error("audit flush failed", zap.Int("rows", len(s.batch)), zap.Error(err))
		return
	}
	s.log.Debug("audit flushed", zap.Int("rows", len(s.batch)))
}

func auditRow(r resolve.Record) persist.AuditRow {
	row := persist.AuditRow{
		ActorID:    r.ActorID,
		Strategy:   r.Strategy.String(),
		Found:      r.Strategy != resolve.StrategyNone,
		ElapsedUS:  r.Elapsed.Microseconds(),
		ResolvedAt: r.At.UTC(),
	}
	if row.Found {
		row.Region = string(r.Location.Region)
		row.X, row.Y, row.Z = r.Location.X, r.Location.Y, r.Location.Z
	}
	return row
}
