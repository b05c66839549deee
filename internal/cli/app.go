package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/pipeline"
	"github.com/ppiankov/safeguard/internal/telemetry"
)

// newPipeline starts telemetry and builds the pipeline from appConfig.
// The returned func flushes telemetry and must be called on exit.
func newPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	logger := slog.Default()

	tel, err := telemetry.New(ctx, &appConfig.Telemetry)
	if err != nil {
		return nil, nil, err
	}
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}

	p, err := pipeline.FromConfig(appConfig, tel, logger)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return p, shutdown, nil
}

// addContextFlags registers the optional user context flags
func addContextFlags(cmd *cobra.Command, uc *model.UserContext) {
	cmd.Flags().StringVar(&uc.Age, "age", "", "user age")
	cmd.Flags().StringVar(&uc.Symptoms, "symptoms", "", "reported symptoms")
	cmd.Flags().StringVar(&uc.MedicalHistory, "history", "", "relevant medical history")
	cmd.Flags().StringVar(&uc.Timeframe, "timeframe", "", "how long symptoms have lasted")
}
