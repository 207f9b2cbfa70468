package config

import (
	kcfg "offstream/source/kafka"
)

// LoadSourceConfig delegates to the Kafka source loader while centralizing
// loader entrypoints under internal/config.
func LoadSourceConfig(path string) (kcfg.Config, error) {
	return kcfg.LoadConfig(path)
}
