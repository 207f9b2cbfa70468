package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"offstream/internal/logging"
	"offstream/sink"
	"offstream/source/kafka"
)

// Source is the checkpointable surface the runner drives.
// *kafka.Source[[]byte] implements it.
type Source interface {
	SetRestoredState(offsets []int64) error
	Open(ctx context.Context) error
	Run(ctx context.Context, emit kafka.EmitFunc[[]byte]) error
	Cancel()
	Close() error

	CheckpointLock() *sync.Mutex
	SnapshotOffsets() []int64
	OnCheckpointComplete(ctx context.Context, checkpointID int64, snapshot []int64) error
}

// Runner is a minimal checkpointing host: it owns the checkpoint lock's
// snapshot timing, fans emitted values out to the sinks, and periodically
// makes the source's read position durable — first in its own state store,
// then, once durable, in the source's coordination store.
type Runner struct {
	source   Source
	states   *StateStore
	interval time.Duration
	sinks    []sink.Adapter

	nextID int64

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	runErr error
}

func NewRunner(src Source, states *StateStore, interval time.Duration) *Runner {
	return &Runner{source: src, states: states, interval: interval, nextID: 1}
}

func (r *Runner) AddSink(s sink.Adapter) { r.sinks = append(r.sinks, s) }

// Done is closed once the ingestion loop has stopped.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Err reports why the pipeline stopped, nil for a clean stop.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runErr
}

// emit runs under the source's checkpoint lock.
func (r *Runner) emit(v []byte) error {
	for _, s := range r.sinks {
		if err := s.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}

	snap, ok, err := r.states.Load()
	if err != nil {
		return err
	}
	if ok {
		if err := r.source.SetRestoredState(snap.Offsets); err != nil {
			return err
		}
		r.nextID = snap.CheckpointID + 1
		logging.L().Info("restored checkpoint", "checkpoint", snap.CheckpointID, "offsets", snap.Offsets)
	}

	if err := r.source.Open(ctx); err != nil {
		return err
	}

	rctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.ingest(rctx)
	go r.checkpointLoop(rctx)
	return nil
}

func (r *Runner) ingest(ctx context.Context) {
	defer close(r.done)
	if err := r.source.Run(ctx, r.emit); err != nil {
		r.setErr(err)
		logging.L().Error("ingestion stopped", "err", err)
	}
	r.cancel()
}

func (r *Runner) checkpointLoop(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.checkpoint(ctx); err != nil {
				// a failed commit is the host's call: fail the job so it
				// restarts from the last durable checkpoint
				r.setErr(err)
				logging.L().Error("checkpoint commit failed", "err", err)
				r.source.Cancel()
				r.cancel()
				return
			}
		}
	}
}

func (r *Runner) checkpoint(ctx context.Context) error {
	id := r.nextID
	r.nextID++

	lock := r.source.CheckpointLock()
	lock.Lock()
	offsets := r.source.SnapshotOffsets()
	lock.Unlock()

	if err := r.states.Save(Snapshot{CheckpointID: id, Offsets: offsets}); err != nil {
		// the snapshot never became durable, so the checkpoint is aborted
		// and the source must not be told it completed
		logging.L().Warn("checkpoint aborted", "checkpoint", id, "err", err)
		return nil
	}
	return r.source.OnCheckpointComplete(ctx, id, offsets)
}

func (r *Runner) setErr(err error) {
	r.mu.Lock()
	if r.runErr == nil {
		r.runErr = err
	}
	r.mu.Unlock()
}

// Close stops ingestion and releases the source and sinks. Safe to call
// after a failure.
func (r *Runner) Close() error {
	r.source.Cancel()
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
	errs := []error{r.source.Close()}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
