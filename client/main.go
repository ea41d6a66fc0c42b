package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatroom/client/api"
	"chatroom/client/cable"
	"chatroom/client/config"
	"chatroom/client/metrics"
	"chatroom/client/store"
	"chatroom/client/submit"
	"chatroom/client/ui"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "chatroom",
	Short:         "Terminal client for the chatroom message service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var (
	flagEnvFile     string
	flagLogLevel    string
	flagLogFile     string
	flagMetricsFile string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagEnvFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to this file")
	flags.StringVar(&flagMetricsFile, "metrics-file", "", "write session events to this CSV file")

	rootCmd.AddCommand(historyCmd, sendCmd, tailCmd, loadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatroom:", err)
		os.Exit(1)
	}
}

// session holds what every subcommand shares: settings, the HTTP client and
// the diagnostics collector.
type session struct {
	cfg       config.Config
	api       *api.Client
	collector *metrics.Collector
	logFile   io.Closer
}

// newSession loads the configuration and sets up logging. Interactive
// sessions never log to the terminal.
func newSession(interactive bool) (*session, error) {
	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	s := &session{cfg: cfg}
	if err := s.setupLogger(level, interactive); err != nil {
		return nil, err
	}

	s.collector, err = metrics.NewCollector(flagMetricsFile)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("metrics file: %w", err)
	}
	s.collector.Start()
	s.api = api.New(cfg.APIURL, api.WithTimeout(cfg.RequestTimeout))
	return s, nil
}

func (s *session) setupLogger(level string, interactive bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer
	switch {
	case flagLogFile != "":
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		s.logFile = f
		w = f
	case interactive:
		w = io.Discard
	default:
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// poster is the instrumented write path used by every submission.
func (s *session) poster() submit.Poster {
	return metrics.InstrumentPoster(s.api, s.collector)
}

// cable builds a connection manager whose frames and status changes are
// counted by the collector.
func (s *session) cable() *cable.Manager {
	m := cable.New(cable.Config{
		URL:          s.cfg.CableEndpoint(),
		Channel:      s.cfg.Channel,
		Reconnect:    s.cfg.Reconnect,
		BaseDelay:    s.cfg.ReconnectBaseDelay,
		MaxDelay:     s.cfg.ReconnectMaxDelay,
		StaleTimeout: s.cfg.StaleTimeout,
	}, log.Logger)
	m.OnFrame(s.collector.RecordFrame)
	m.OnStatus(s.collector.RecordStatus)
	return m
}

func (s *session) close() {
	if s.collector != nil {
		s.collector.Close()
		<-s.collector.Done
		s.collector.LogSummary(log.Logger)
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runChat(cmd *cobra.Command, _ []string) error {
	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	events := ui.NewEvents()
	st := store.New(s.api, log.Logger)
	sub := submit.New(s.poster(), events, log.Logger)
	mgr := s.cable()

	st.Watch(events.StoreChanged)
	sub.OnSendingChange(events.SendingChanged)
	mgr.OnStatus(events.StatusChanged)
	mgr.OnFrame(st.OnSubscriptionEvent)

	if err := mgr.Connect(cmd.Context()); err != nil {
		// history and sending still work without the live channel
		log.Warn().Err(err).Msg("live channel unavailable")
	}
	defer func() {
		if err := mgr.Disconnect(); err != nil {
			log.Debug().Err(err).Msg("disconnect")
		}
	}()

	return ui.Run(ui.Options{
		Store:          st,
		Submitter:      sub,
		Events:         events,
		Status:         mgr.Status(),
		NoticeDuration: s.cfg.NoticeDuration,
		Log:            log.Logger,
	})
}
