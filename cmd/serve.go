package cmd

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/panel-interview/internal/gateway"
	"github.com/spigell/panel-interview/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview gateway (HTTP API and WebSocket)",
	Run: func(_ *cobra.Command, _ []string) {
		if err := serve(); err != nil {
			log.Fatalf("serve: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer func() { _ = logger.Sync() }()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the panel-interview gateway",
		zap.String("version", version),
		zap.String("provider", config.LLM.Provider),
		zap.String("embedding_provider", config.LLM.EmbeddingProvider),
		zap.String("store", config.Store.Driver),
	)

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}
	defer func() {
		if err := svc.store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	server, err := gateway.New(gateway.Deps{
		Panels:     svc.panels,
		Interviews: svc.interviews,
		Feedback:   svc.feedback,
		Resumes:    svc.resumes,
		Gatherer:   svc.registry,
		Recorder:   svc.recorder,
		Logger:     logger,
	}, gateway.Config{
		MaxUploadBytes:  config.Server.MaxUploadBytes,
		CookieName:      config.Server.CookieName,
		SilenceTimeout:  config.Client.SilenceTimeout,
		ShutdownTimeout: config.Server.ShutdownTimeout,
		SummaryCache:    config.Server.SummaryCache,
		NotesTTL:        config.Server.NotesTTL,
	})
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}
