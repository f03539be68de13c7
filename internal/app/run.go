package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/fablego/internal/codegen"
	"github.com/vk/fablego/internal/ctxlog"
)

// Run executes the main application logic: lower the loaded program, then
// drive the generated entry choreography under signal-aware cancellation.
// Services are stopped after the run, whatever its outcome.
func (a *App) Run(parent context.Context) error {
	ctx := ctxlog.WithLogger(parent, a.logger)
	a.logger.Debug("App.Run method started.")

	module, err := codegen.Generate(ctx, a.program, a.registry, a.pool)
	if err != nil {
		return fmt.Errorf("failed to generate program: %w", err)
	}
	a.logger.Debug("Program lowered.",
		"feature_sets", len(a.program.FeatureSets), "constants", a.pool.Len())

	// The termination signal is the only cancellation primitive: it stops
	// new event acceptance, never in-flight work.
	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("🚀 Starting program execution...")
	runErr := module.Execute(signalCtx, a.runtime, codegen.ExecConfig{
		Out:          a.outW,
		Contract:     a.contract,
		DrainTimeout: a.config.DrainTimeout,
	})
	a.logger.Info("🏁 Execution finished.")

	a.services.stopAll(ctx)

	if runErr != nil {
		return runErr
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
