package pipeline

import (
	"fmt"
	"time"

	"offstream/internal/config"
	"offstream/sink"
	kafkasink "offstream/sink/kafka"
	"offstream/sink/stdout"
	"offstream/source/kafka"
)

const (
	defaultCheckpointInterval = 10 * time.Second
	defaultStateDir           = "state"
)

// Compile builds a Runner from a pipeline YAML: source driver, offset store
// backend, checkpoint cadence, and sinks.
func Compile(path string) (*Runner, error) {
	cfg, confPath, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}

	if cfg.Source.Kind != "kafka" {
		return nil, fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}
	kc, err := config.LoadSourceConfig(confPath)
	if err != nil {
		return nil, err
	}
	if cfg.Source.Driver != "" {
		kc.Driver = cfg.Source.Driver
	}

	src, err := kafka.New[[]byte](kc, kafka.RawSchema{})
	if err != nil {
		return nil, err
	}

	dir := cfg.Checkpoint.Dir
	if dir == "" {
		dir = defaultStateDir
	}
	states, err := NewStateStore(dir)
	if err != nil {
		return nil, err
	}
	interval := time.Duration(cfg.Checkpoint.IntervalMS) * time.Millisecond
	if interval == 0 {
		interval = defaultCheckpointInterval
	}

	r := NewRunner(src, states, interval)

	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return nil, err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(stdout.Config{
				PrintCounter:  cfg.SinkConfigs.Stdout.PrintCounter,
				ValueMaxBytes: cfg.SinkConfigs.Stdout.ValueMaxBytes,
			})
		case "kafka":
			err = sDrv.Configure(kafkasink.Config{
				Brokers: cfg.SinkConfigs.Kafka.Brokers,
				Topic:   cfg.SinkConfigs.Kafka.Topic,
				Acks:    cfg.SinkConfigs.Kafka.Acks,
			})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return nil, err
		}
		r.AddSink(sDrv)
	}
	return r, nil
}
