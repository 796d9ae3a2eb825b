// relayd is the rchat relay daemon. It forwards opaque ciphertext
// between room participants and never holds keys or plaintext.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rchat/internal/relay"
	"rchat/internal/relay/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configFile string
		listen     string
		certFile   string
		keyFile    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "relayd",
		Short:         "rchat relay daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := new(config.Config)
			if configFile != "" {
				loaded, err := config.Load(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if listen != "" {
				cfg.Server.Address = listen
			}
			if certFile != "" {
				cfg.Server.CertFile = certFile
			}
			if keyFile != "" {
				cfg.Server.KeyFile = keyFile
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.FixupAndValidate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv, err := relay.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "f", "", "TOML config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :6666)")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
