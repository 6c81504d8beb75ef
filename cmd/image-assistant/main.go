package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	imageassistant "github.com/menta2k/image-assistant"
	"github.com/menta2k/image-assistant/internal/account"
	"github.com/menta2k/image-assistant/internal/config"
	"github.com/menta2k/image-assistant/internal/http/handlers"
	"github.com/menta2k/image-assistant/internal/http/router"
	"github.com/menta2k/image-assistant/internal/logging"
	"github.com/menta2k/image-assistant/internal/session"
	"github.com/menta2k/image-assistant/internal/store"
	"github.com/menta2k/image-assistant/pkg/analyzer"
	"github.com/menta2k/image-assistant/pkg/client"
	"github.com/menta2k/image-assistant/pkg/describe"
	"github.com/menta2k/image-assistant/pkg/detection"
	"github.com/menta2k/image-assistant/pkg/gcv"
	"github.com/menta2k/image-assistant/pkg/ollama"
	"github.com/menta2k/image-assistant/pkg/openai"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "image-assistant",
		Short:         "Image recognition assistant web UI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newVersionCmd(), newInitConfigCmd(), newUsersCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), imageassistant.GetVersion())
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Default().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List accounts with their usage and subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			users, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("failed to open user store: %w", err)
			}
			defer users.Close()
			return listUsers(cmd.Context(), users, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func listUsers(ctx context.Context, users store.Store, out io.Writer) error {
	all, err := users.All(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tUSAGE\tSUBSCRIBED")
	for _, name := range names {
		u := all[name]
		fmt.Fprintf(w, "%s\t%d\t%t\n", name, u.UsageCount, u.SubscriptionStatus)
	}
	return w.Flush()
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer users.Close()

	annotator, err := gcv.NewClient(ctx, gcv.Options{
		CredentialsFile: cfg.Vision.CredentialsFile,
		APIKey:          cfg.Vision.APIKey,
		Timeout:         cfg.Vision.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create vision client: %w", err)
	}
	defer annotator.Close()

	completer, err := newCompleter(cfg.Completion)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}

	accounts := account.NewService(users, cfg.Store.BcryptCost, logger.Named("account"))

	assistant := imageassistant.New(imageassistant.Components{
		Detector: detection.NewDetectorWithConfig(annotator, detection.Config{
			MaxDimension: cfg.Vision.MaxDimension,
			JPEGQuality:  cfg.Vision.JPEGQuality,
		}, logger.Named("detection")),
		Describer: describe.New(completer, describe.Config{
			PremiumModel: cfg.Completion.PremiumModel,
			FreeModel:    cfg.Completion.FreeModel,
			PremiumName:  cfg.Completion.PremiumName,
			FreeName:     cfg.Completion.FreeName,
		}, logger.Named("describe")),
		Accounts: accounts,
		Loader: analyzer.NewWithConfig(analyzer.Config{
			SupportedFormats: cfg.Upload.SupportedFormats,
			MinImageSize:     1,
			MaxUploadBytes:   cfg.Upload.MaxBytes,
		}),
		JPEGQuality: cfg.Vision.JPEGQuality,
	}, logger)

	sessions, err := session.NewManager(session.Options{
		Secret:          []byte(cfg.Session.Secret),
		HistoryCapacity: cfg.Session.HistoryCapacity,
		IdleTimeout:     cfg.Session.IdleTimeout,
		MaxAge:          cfg.Session.CookieMaxAge,
		Secure:          cfg.Session.Secure,
	}, logger.Named("session"))
	if err != nil {
		return err
	}

	h, err := handlers.New(assistant, accounts, sessions, handlers.Options{
		MaxUploadBytes:   cfg.Upload.MaxBytes,
		SupportedFormats: cfg.Upload.SupportedFormats,
	}, logger.Named("http"))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.Setup(h, logger.Named("http")),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newCompleter(cfg config.CompletionConfig) (client.Completer, error) {
	switch cfg.Backend {
	case "ollama":
		return ollama.NewClient(cfg.BaseURL, cfg.Timeout)
	case "openai":
		return openai.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown completion backend: %q", cfg.Backend)
	}
}
