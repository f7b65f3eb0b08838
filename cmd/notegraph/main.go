package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/notegraph/internal/auth"
	"github.com/MarcoPoloResearchLab/notegraph/internal/cache"
	"github.com/MarcoPoloResearchLab/notegraph/internal/config"
	"github.com/MarcoPoloResearchLab/notegraph/internal/ingest"
	"github.com/MarcoPoloResearchLab/notegraph/internal/logging"
	"github.com/MarcoPoloResearchLab/notegraph/internal/notify"
	"github.com/MarcoPoloResearchLab/notegraph/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	tokenSubject string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notegraph",
		Short: "In-memory Nostr user and note graph",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event intake and query service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an event feeder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return issueToken(cmd)
		},
	}
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Feeder identifier embedded in the token")
	if err := tokenCmd.MarkFlagRequired("subject"); err != nil {
		panic(err)
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().Int64("max-ingest-bytes", defaults.GetInt64("http.max_ingest_bytes"), "Maximum POST /events body size in bytes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().Bool("notify-reactions", defaults.GetBool("ingest.notify_reactions"), "Publish change markers for reactions")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Feeder token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Feeder token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.max_ingest_bytes", "max-ingest-bytes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "ingest.notify_reactions", "notify-reactions")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newTokenIssuer(appConfig config.AppConfig) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
}

func issueToken(cmd *cobra.Command) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	tokenIssuer, err := newTokenIssuer(appConfig)
	if err != nil {
		return err
	}
	token, expiresIn, err := tokenIssuer.IssueToken(tokenSubject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires in %ds\n", token, expiresIn)
	return err
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	tokenIssuer, err := newTokenIssuer(appConfig)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Clock:     time.Now,
		Revisions: notify.NewRevisionSource(),
		Logger:    logger,
	})

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Store:           cache.NewStore(),
		Notifier:        dispatcher,
		Logger:          logger,
		NotifyReactions: appConfig.NotifyReactions,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:         tokenIssuer,
		Pipeline:       pipeline,
		Notifications:  dispatcher,
		Logger:         logger,
		MaxIngestBytes: appConfig.MaxIngestBytes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Bool("notify_reactions", appConfig.NotifyReactions))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
