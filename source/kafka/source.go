package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"offstream/internal/logging"
	"offstream/internal/telemetry"
	"offstream/store"
)

type state int32

const (
	stateCreated state = iota
	stateOpen
	stateRunning
	stateCancelled
	stateClosed
	stateFailed
)

// Source reads the single Kafka stream assigned to this instance and keeps
// the consumer group's committed offsets in the coordination store in
// lockstep with the host pipeline's checkpoints.
//
// The offset vector advances together with each emitted record under the
// checkpoint lock, so a snapshot taken by the host always corresponds
// exactly to the set of records emitted so far. Offsets reach the store only
// when the host reports the checkpoint that contains them as durably
// complete.
type Source[T any] struct {
	cfg    Config
	schema Schema[T]

	client LogClient
	cursor Cursor
	store  store.Store

	// lock is shared with the host's checkpoint mechanism. The critical
	// section spans the offset advance and the emit; an atomic variable
	// cannot express that pairing.
	lock *sync.Mutex

	numPartitions int32
	offsets       OffsetVector // written only by Run
	restored      OffsetVector

	commitMu sync.Mutex
	tracker  *commitTracker

	st        atomic.Int32
	running   atomic.Bool
	closeOnce sync.Once
}

type Option[T any] func(*Source[T])

// WithLogClient injects a broker client, bypassing the driver registry.
func WithLogClient[T any](c LogClient) Option[T] {
	return func(s *Source[T]) { s.client = c }
}

// WithStore injects a coordination store, bypassing the store registry.
func WithStore[T any](st store.Store) Option[T] {
	return func(s *Source[T]) { s.store = st }
}

// WithCheckpointLock makes the source synchronize on a host-provided lock
// instead of its own.
func WithCheckpointLock[T any](mu *sync.Mutex) Option[T] {
	return func(s *Source[T]) { s.lock = mu }
}

func New[T any](cfg Config, schema Schema[T], opts ...Option[T]) (*Source[T], error) {
	if schema == nil {
		return nil, errors.New("kafka: nil deserialization schema")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source[T]{cfg: cfg, schema: schema, lock: &sync.Mutex{}}
	for _, o := range opts {
		o(s)
	}
	s.st.Store(int32(stateCreated))
	return s, nil
}

// CheckpointLock returns the lock the host must hold while snapshotting the
// offset vector.
func (s *Source[T]) CheckpointLock() *sync.Mutex { return s.lock }

// SetRestoredState hands the source the offset vector of a restored
// checkpoint. Must be called before Open.
func (s *Source[T]) SetRestoredState(offsets []int64) error {
	if state(s.st.Load()) != stateCreated {
		return errors.New("kafka: restored state must be set before open")
	}
	s.restored = append(OffsetVector(nil), offsets...)
	return nil
}

// Open connects the broker client and the coordination store, discovers the
// partition count, and initializes or restores the offset vector. Restored
// non-sentinel offsets are written to the store before the source may run,
// so a crash right after restart cannot leave the store behind the last
// durable checkpoint.
func (s *Source[T]) Open(ctx context.Context) error {
	if !s.st.CompareAndSwap(int32(stateCreated), int32(stateOpen)) {
		return fmt.Errorf("kafka: open called in state %d", s.st.Load())
	}

	if s.client == nil {
		cl, err := NewLogClient(s.cfg.Driver, s.cfg)
		if err != nil {
			return s.fail(err)
		}
		s.client = cl
	}
	if s.store == nil {
		st, err := store.New(s.cfg.Offsets.Backend, store.Config{
			Endpoints:   s.cfg.Offsets.Endpoints,
			DialTimeout: s.cfg.Offsets.DialTimeout,
		})
		if err != nil {
			return s.fail(err)
		}
		s.store = st
	}

	n, err := s.client.Partitions(ctx, s.cfg.Topic)
	if err != nil {
		return s.fail(fmt.Errorf("kafka: partition count for topic %q: %w", s.cfg.Topic, err))
	}
	if n <= 0 {
		return s.fail(fmt.Errorf("kafka: topic %q has no partitions", s.cfg.Topic))
	}
	s.numPartitions = n

	if s.restored != nil {
		if int32(len(s.restored)) != n {
			return s.fail(fmt.Errorf("kafka: there are %d offsets to restore for topic %q but the topic has %d partitions",
				len(s.restored), s.cfg.Topic, n))
		}
		s.offsets = s.restored.Clone()
	} else {
		s.offsets = NewOffsetVector(n)
	}
	s.tracker = newCommitTracker(n)

	if s.restored != nil {
		logging.L().Info("writing restored offsets to coordination store",
			"topic", s.cfg.Topic, "group", s.cfg.GroupID, "offsets", []int64(s.restored))
		if err := s.commit(ctx, s.restored); err != nil {
			return s.fail(err)
		}
	}

	cur, err := s.client.OpenCursor(ctx, s.cfg.Topic)
	if err != nil {
		return s.fail(fmt.Errorf("kafka: open cursor for topic %q: %w", s.cfg.Topic, err))
	}
	s.cursor = cur
	s.running.Store(true)

	logging.L().Info("opened kafka source",
		"topic", s.cfg.Topic, "group", s.cfg.GroupID,
		"partitions", n, "restored", s.restored != nil)
	return nil
}

// Run drives the ingestion loop until cancellation, an end-of-stream signal
// from the schema, or cursor exhaustion.
func (s *Source[T]) Run(ctx context.Context, emit EmitFunc[T]) error {
	if emit == nil {
		return errors.New("kafka: nil emit func")
	}
	if !s.st.CompareAndSwap(int32(stateOpen), int32(stateRunning)) {
		return errors.New("kafka: source is not open")
	}

	for s.running.Load() {
		rec, err := s.cursor.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrCursorClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return s.fail(fmt.Errorf("kafka: read from topic %q: %w", s.cfg.Topic, err))
		}
		if rec.Partition < 0 || rec.Partition >= s.numPartitions {
			return s.fail(fmt.Errorf("kafka: record at offset %d names partition %d but topic %q has %d partitions",
				rec.Offset, rec.Partition, s.cfg.Topic, s.numPartitions))
		}

		// the broker client may replay records after a retry or rebalance
		if rec.Offset <= s.offsets[rec.Partition] {
			telemetry.RecordsSkipped.Inc()
			logging.L().Debug("skipping replayed record",
				"topic", s.cfg.Topic, "partition", rec.Partition, "offset", rec.Offset)
			continue
		}

		v, err := s.schema.Deserialize(rec.Payload)
		if err != nil {
			return s.fail(fmt.Errorf("kafka: deserialize %s[%d]@%d: %w",
				s.cfg.Topic, rec.Partition, rec.Offset, err))
		}
		if s.schema.EndOfStream(v) {
			logging.L().Info("schema signaled end of stream",
				"topic", s.cfg.Topic, "partition", rec.Partition, "offset", rec.Offset)
			break
		}

		// the offset advance and the emit must be observed together by a
		// concurrently taken checkpoint snapshot
		s.lock.Lock()
		s.offsets[rec.Partition] = rec.Offset
		err = emit(v)
		s.lock.Unlock()
		if err != nil {
			return s.fail(fmt.Errorf("kafka: emit %s[%d]@%d: %w",
				s.cfg.Topic, rec.Partition, rec.Offset, err))
		}
		telemetry.RecordsEmitted.Inc()
	}

	s.st.CompareAndSwap(int32(stateRunning), int32(stateCancelled))
	return nil
}

// Cancel asks the ingestion loop to stop once the record it is currently
// processing has been emitted. A pending blocking read is not interrupted.
func (s *Source[T]) Cancel() { s.running.Store(false) }

// SnapshotOffsets copies the offset vector for a checkpoint. The caller must
// hold CheckpointLock().
func (s *Source[T]) SnapshotOffsets() []int64 {
	return append([]int64(nil), s.offsets...)
}

// OnCheckpointComplete pushes a durably checkpointed offset vector to the
// coordination store. The host must call it only after the checkpoint's
// snapshot has been persisted, and never for an aborted checkpoint. Writes
// are bounded to partitions whose offset advanced since the last commit; a
// store failure is returned to the host undisturbed, with the tracker left
// so a retried notification writes the failed partitions again.
func (s *Source[T]) OnCheckpointComplete(ctx context.Context, checkpointID int64, snapshot []int64) error {
	if int32(len(snapshot)) != s.numPartitions {
		return fmt.Errorf("kafka: checkpoint %d carries %d offsets but topic %q has %d partitions",
			checkpointID, len(snapshot), s.cfg.Topic, s.numPartitions)
	}
	logging.L().Info("committing checkpoint offsets",
		"checkpoint", checkpointID, "topic", s.cfg.Topic, "offsets", snapshot)
	if err := s.commit(ctx, snapshot); err != nil {
		return fmt.Errorf("kafka: checkpoint %d: %w", checkpointID, err)
	}
	telemetry.CheckpointsCommitted.Inc()
	return nil
}

func (s *Source[T]) commit(ctx context.Context, snapshot []int64) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	for p := int32(0); p < s.numPartitions; p++ {
		off := snapshot[p]
		if !s.tracker.needsWrite(p, off) {
			continue
		}
		if err := s.store.WriteOffset(ctx, s.cfg.GroupID, s.cfg.Topic, p, off); err != nil {
			telemetry.CommitErrors.Inc()
			return fmt.Errorf("commit offset %d for %s[%d]: %w", off, s.cfg.Topic, p, err)
		}
		s.tracker.mark(p, off)
		telemetry.OffsetCommits.Inc()
		telemetry.LastCommitted.WithLabelValues(s.cfg.Topic, strconv.Itoa(int(p))).Set(float64(off))
	}
	return nil
}

// Close releases the broker and store connections. Idempotent, safe after a
// failure.
func (s *Source[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.running.Store(false)
		var errs []error
		if s.cursor != nil {
			errs = append(errs, s.cursor.Close())
		}
		if s.client != nil {
			errs = append(errs, s.client.Close())
		}
		if s.store != nil {
			errs = append(errs, s.store.Close())
		}
		if state(s.st.Load()) != stateFailed {
			s.st.Store(int32(stateClosed))
		}
		err = errors.Join(errs...)
		logging.L().Info("closed kafka source", "topic", s.cfg.Topic)
	})
	return err
}

func (s *Source[T]) fail(err error) error {
	s.st.Store(int32(stateFailed))
	s.running.Store(false)
	return err
}
