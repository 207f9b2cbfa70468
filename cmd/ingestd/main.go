package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"offstream/internal/engine"
	"offstream/internal/logging"

	_ "offstream/store/etcd"
)

func main() {
	pipelinePath := flag.String("pipeline", "pipeline.yml", "pipeline spec file")
	metricsPort := flag.Int("metrics-port", 9100, "prometheus listen port")
	flag.Parse()

	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, engine.Config{
		PipelineYml: *pipelinePath,
		MetricsPort: *metricsPort,
	})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
