package spec

type kafkaSinkSection struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"`
}

type stdoutSinkSection struct {
	PrintCounter  bool `yaml:"print_counter"`
	ValueMaxBytes int  `yaml:"value_max_bytes"`
}

type sinkConfigs struct {
	Kafka  kafkaSinkSection  `yaml:"kafka"`
	Stdout stdoutSinkSection `yaml:"stdout"`
}

type checkpointSection struct {
	IntervalMS int    `yaml:"interval_ms"`
	Dir        string `yaml:"dir"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source struct {
		Kind   string `yaml:"kind"`
		Driver string `yaml:"driver"`
		Config string `yaml:"config"`
	} `yaml:"source"`

	Checkpoint checkpointSection `yaml:"checkpoint"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs sinkConfigs `yaml:"sink_configs"`
}
