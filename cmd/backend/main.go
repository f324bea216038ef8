package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"upload-gateway/internal/config"
	"upload-gateway/internal/logging"
	"upload-gateway/internal/server"
	"upload-gateway/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// runFunc starts the gateway with a loaded configuration.
type runFunc func(ctx context.Context, cfg config.Config, logger *logrus.Logger) error

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"region":           config.KeyRegion,
	"bucket":           config.KeyBucketName,
	"folder-path":      config.KeyFolderPath,
	"port":             config.KeyPort,
	"allowed-origins":  config.KeyAllowedOrigins,
	"max-upload-bytes": config.KeyMaxUploadBytes,
	"backend":          config.KeyBackend,
	"endpoint":         config.KeyEndpoint,
	"log-level":        config.KeyLogLevel,
	"log-format":       config.KeyLogFormat,
}

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(start runFunc) *cobra.Command {
	v := config.NewViper()
	var envFile string

	cmd := &cobra.Command{
		Use:           "backend",
		Short:         "HTTP gateway that uploads files to and lists files from an object storage bucket",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadEnvFile(v, envFile); err != nil {
				return reportStartup(cmd, err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return reportStartup(cmd, err)
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return reportStartup(cmd, err)
			}
			if err := start(cmd.Context(), cfg, logger); err != nil {
				logger.WithError(err).Error("server_error")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file read at startup; a missing file is ignored")
	flags.String("region", config.DefaultRegion, "storage region")
	flags.String("bucket", "", "bucket that receives uploads (required)")
	flags.String("folder-path", "", "key prefix prepended to every uploaded file name")
	flags.Int("port", config.DefaultPort, "HTTP listen port")
	flags.String("allowed-origins", config.DefaultAllowedOrigins, "comma-separated CORS origins")
	flags.Int64("max-upload-bytes", config.DefaultMaxUploadBytes, "maximum accepted file size in bytes")
	flags.String("backend", storage.BackendS3, "storage backend: s3, minio, gcs or memory")
	flags.String("endpoint", "", "custom storage endpoint, required for minio")
	flags.String("log-level", config.DefaultLogLevel, "log level")
	flags.String("log-format", config.DefaultLogFormat, "log format: text or json")
	bindFlags(v, flags)

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// reportStartup prints errors raised before a logger exists.
func reportStartup(cmd *cobra.Command, err error) error {
	cmd.PrintErrln("backend: " + err.Error())
	return err
}

// run serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// listener fails.
func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	store, err := storage.New(ctx, cfg.StorageOptions())
	if err != nil {
		return errors.Wrap(err, "create storage backend")
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	srv := server.New(server.Config{
		App:    cfg,
		Store:  store,
		Logger: logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"backend": cfg.Backend,
			"bucket":  cfg.BucketName,
			"folder":  cfg.FolderPath,
		}).Info("starting")
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting_down")
	case <-ctx.Done():
		logger.Info("shutting_down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	logger.Info("shutdown_complete")
	return nil
}
