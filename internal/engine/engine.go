package engine

import (
	"context"
	"errors"

	"offstream/internal/pipeline"
)

type Engine struct {
	runner *pipeline.Runner
}

// Run blocks until the context is cancelled or the pipeline stops on its
// own, then tears the pipeline down.
func (e *Engine) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return e.runner.Close()
	case <-e.runner.Done():
		return errors.Join(e.runner.Err(), e.runner.Close())
	}
}
