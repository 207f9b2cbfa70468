package stdout

import (
	"fmt"
	"sync/atomic"

	"offstream/sink"
)

type Config struct {
	PrintCounter  bool `yaml:"print_counter"`   // prepend seq#
	ValueMaxBytes int  `yaml:"value_max_bytes"` // 0 = unlimited
}

type driver struct {
	cfg Config
	seq uint64
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(value []byte) error {
	if d.cfg.ValueMaxBytes > 0 && len(value) > d.cfg.ValueMaxBytes {
		value = value[:d.cfg.ValueMaxBytes]
	}
	if d.cfg.PrintCounter {
		fmt.Printf("[sink %06d] %s\n", atomic.AddUint64(&d.seq, 1), value)
		return nil
	}
	fmt.Printf("%s\n", value)
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
