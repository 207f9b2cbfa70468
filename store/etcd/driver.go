package etcd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"offstream/store"
)

// requestTimeout bounds each store round-trip so a dead etcd member fails a
// commit instead of wedging the checkpoint notification.
const requestTimeout = 3 * time.Second

type driver struct {
	cl *clientv3.Client
}

func New(cfg store.Config) (store.Store, error) {
	cl, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd: connect %v: %w", cfg.Endpoints, err)
	}
	return &driver{cl: cl}, nil
}

// offsetKey follows the consumer-group layout external offset tooling
// expects: one integer value per group/topic/partition.
func offsetKey(group, topic string, partition int32) string {
	return fmt.Sprintf("/consumers/%s/offsets/%s/%d", group, topic, partition)
}

func (d *driver) ReadOffset(ctx context.Context, group, topic string, partition int32) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	key := offsetKey(group, topic, partition)
	resp, err := d.cl.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("etcd: read offset for %s/%s[%d]: %w", group, topic, partition, err)
	}
	if len(resp.Kvs) == 0 {
		return 0, store.ErrNotFound
	}
	off, err := strconv.ParseInt(string(resp.Kvs[0].Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("etcd: malformed offset at %s: %w", key, err)
	}
	return off, nil
}

func (d *driver) WriteOffset(ctx context.Context, group, topic string, partition int32, offset int64) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	key := offsetKey(group, topic, partition)
	if _, err := d.cl.Put(ctx, key, strconv.FormatInt(offset, 10)); err != nil {
		return fmt.Errorf("etcd: write offset %d for %s/%s[%d]: %w", offset, group, topic, partition, err)
	}
	return nil
}

func (d *driver) Close() error { return d.cl.Close() }

func init() { store.Register("etcd", New) }
