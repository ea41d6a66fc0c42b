package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatroom/client/cable"
	"chatroom/client/load"
	"chatroom/client/store"
	"chatroom/client/submit"
	"chatroom/model"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "Jan 2 2006 15:04"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the message history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(false)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		st := store.New(s.api, log.Logger)
		if err := st.LoadInitial(ctx); err != nil {
			return err
		}
		renderHistory(cmd.OutOrStdout(), st.State().Messages)
		return nil
	},
}

func renderHistory(w io.Writer, messages []model.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "no messages yet")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Date", "Body"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(lo.Map(messages, func(m model.Message, _ int) []string {
		return []string{string(m.ID), m.CreatedAt.Local().Format(dateLayout), m.Body}
	}))
	table.Render()
}

// logNotifier reports submission notices on the log instead of a screen.
type logNotifier struct{}

func (logNotifier) Notify(n submit.Notice) {
	ev := log.Info()
	if n.Level == submit.LevelError {
		ev = log.Error()
	}
	ev.Str("title", n.Title).Msg(n.Text)
}

var sendCmd = &cobra.Command{
	Use:   "send TEXT...",
	Short: "Send one message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(false)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		sub := submit.New(s.poster(), logNotifier{}, log.Logger)
		if err := sub.Submit(ctx, submit.NewText(strings.Join(args, " "))); err != nil {
			return err
		}
		log.Info().Msg("message sent")
		return nil
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the live channel and print every new message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(false)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		appended := make(chan model.Message, 64)
		st := store.New(s.api, log.Logger)
		seen := 0
		st.Watch(func(state store.State) {
			for _, m := range state.Messages[min(seen, len(state.Messages)):] {
				select {
				case appended <- m:
				case <-ctx.Done():
				}
			}
			seen = len(state.Messages)
		})

		mgr := s.cable()
		mgr.OnFrame(st.OnSubscriptionEvent)
		mgr.OnStatus(func(status cable.Status) {
			if status == cable.StatusDisconnected {
				cancel()
			}
		})
		if err := mgr.Connect(ctx); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			out := cmd.OutOrStdout()
			for {
				select {
				case <-gctx.Done():
					return nil
				case m := <-appended:
					fmt.Fprintf(out, "%s  %s\n", m.CreatedAt.Local().Format(dateLayout), m.Body)
				}
			}
		})
		g.Go(func() error {
			<-gctx.Done()
			return mgr.Disconnect()
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var (
	flagWorkers  int
	flagMessages int
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Post many messages concurrently and report latency and throughput",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagWorkers < 1 || flagMessages < 1 {
			return errors.New("--workers and --messages must be positive")
		}
		s, err := newSession(false)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		log.Info().Int("workers", flagWorkers).Int("messages", flagMessages).Msg("load run starting")
		gen := load.NewGenerator(flagMessages, 4*flagWorkers)
		go gen.Run(ctx)

		res := load.NewPool(flagWorkers, gen.Output, s.poster(), log.Logger).Run(ctx)
		log.Info().
			Int64("sent", res.Sent).
			Int64("failed", res.Failed).
			Dur("wall_time", res.Duration).
			Str("throughput", fmt.Sprintf("%.2f msg/s", res.Throughput())).
			Msg("load run complete")
		return nil
	},
}

func init() {
	loadCmd.Flags().IntVar(&flagWorkers, "workers", 16, "concurrent senders")
	loadCmd.Flags().IntVar(&flagMessages, "messages", 1000, "total messages to send")
}
