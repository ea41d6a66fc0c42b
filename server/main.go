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

	"chatroom/server/handler"
	"chatroom/server/room"
	"chatroom/server/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:          "chatroom-server",
	Short:        "Development message service with a live channel endpoint",
	SilenceUsage: true,
	RunE:         runServer,
}

var (
	flagAddr     string
	flagDataPath string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAddr, "addr", ":3000", "listen address")
	flags.StringVar(&flagDataPath, "data-path", "", "pebble directory for the message history (empty keeps it in memory)")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chatroom-server command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := storage.Open(flagDataPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := history.Close(); err != nil {
			log.Warn().Err(err).Msg("close message store")
		}
	}()

	rooms := room.NewManager(log.Logger)
	srv := &http.Server{
		Handler:      handler.NewRouter(history, rooms, log.Logger),
		Addr:         flagAddr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", flagAddr).Int("messages", history.Len()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		// live channel connections are hijacked and not covered by Shutdown
		rooms.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server exiting")
	return nil
}
