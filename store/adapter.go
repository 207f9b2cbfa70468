package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by ReadOffset when no offset has ever been
// committed for the requested partition.
var ErrNotFound = errors.New("store: offset not found")

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
}

// Store is the coordination-store surface the source commits through.
// Offsets live under a per-group, per-topic, per-partition path and a write
// is an upsert of a single integer value.
type Store interface {
	ReadOffset(ctx context.Context, group, topic string, partition int32) (int64, error)
	WriteOffset(ctx context.Context, group, topic string, partition int32, offset int64) error
	Close() error
}

/*──────── registry ───────*/

type factory = func(Config) (Store, error)

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func New(name string, cfg Config) (Store, error) {
	if f, ok := reg[name]; ok {
		return f(cfg)
	}
	return nil, fmt.Errorf("unknown offset store %q", name)
}
