package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/honnyfrontend/joao-fotografo/internal/app/apiapp"
	"github.com/honnyfrontend/joao-fotografo/internal/config"
	"github.com/honnyfrontend/joao-fotografo/internal/infra/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type toolEnv struct {
	cfgPath string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	env := &toolEnv{}

	root := &cobra.Command{
		Use:           "gallerytool",
		Short:         "Maintenance commands for the photo gallery backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&env.cfgPath, "config", defaultConfigPath(), "path to the yaml config")
	root.PersistentFlags().DurationVar(&env.timeout, "timeout", time.Minute, "overall command timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the metadata schema or indexes for the configured driver",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return env.run(cmd.Context(), func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
					return apiapp.Migrate(ctx, cfg, log)
				})
			},
		},
		&cobra.Command{
			Use:   "ensure-bucket",
			Short: "Create the S3 bucket used by the s3 media driver",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return env.run(cmd.Context(), func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
					if err := apiapp.EnsureBucket(ctx, cfg); err != nil {
						return err
					}
					log.Info("s3 bucket ready", zap.String("bucket", cfg.S3.Bucket))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Delete batches that no longer reference any photo",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return env.run(cmd.Context(), func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
					removed, err := apiapp.SweepEmptyBatches(ctx, cfg, log)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d empty batch(es)\n", removed)
					return nil
				})
			},
		},
	)

	return root
}

func (e *toolEnv) run(parent context.Context, fn func(context.Context, config.Config, *zap.Logger) error) error {
	cfg, err := config.Load(e.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return fn(ctx, cfg, log)
}

func defaultConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
