package kafka

import (
	"context"
	"errors"
	"fmt"
)

// Record is one raw entry fetched from the log.
type Record struct {
	Partition int32
	Offset    int64
	Payload   []byte
}

// ErrCursorClosed is returned by Next once the stream behind the cursor is
// exhausted or the cursor has been closed.
var ErrCursorClosed = errors.New("kafka: cursor closed")

// Cursor is a sequential iterator over the single record stream assigned to
// this source instance. Offsets are non-decreasing per partition; the same
// offset may reappear after a broker-side retry or rebalance, which the
// source filters out.
type Cursor interface {
	Next(ctx context.Context) (Record, error)
	Close() error
}

// LogClient is the narrow broker surface the source depends on.
type LogClient interface {
	Partitions(ctx context.Context, topic string) (int32, error)
	OpenCursor(ctx context.Context, topic string) (Cursor, error)
	Close() error
}

// Factory builds a LogClient from a validated config.
type Factory func(Config) (LogClient, error)

var registry = map[string]Factory{}

func Register(name string, f Factory) { registry[name] = f }

func NewLogClient(name string, cfg Config) (LogClient, error) {
	if f, ok := registry[name]; ok {
		return f(cfg)
	}
	return nil, fmt.Errorf("kafka: unsupported driver %q", name)
}
