package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// newDaemonCmd runs the connectivity monitor and sync scheduler until SIGINT/SIGTERM.
func newDaemonCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "run the background sync scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, v)
			if err != nil {
				return err
			}
			defer a.close()

			a.log.Info("daemon starting",
				zap.String("version", version),
				zap.String("db", v.GetString("db")),
				zap.String("base_url", v.GetString("base-url")),
			)

			errCh := make(chan error, 1)
			go func() { errCh <- a.mon.Run(ctx) }()

			err = a.sched.Run(ctx)
			<-errCh
			if errors.Is(err, context.Canceled) {
				a.log.Info("daemon stopped")
				return nil
			}
			return err
		},
	}
}
