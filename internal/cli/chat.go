package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syncnotes/syncnotes-go/internal/chat"
	"github.com/syncnotes/syncnotes-go/internal/proto"
	"github.com/syncnotes/syncnotes-go/internal/realtime"
	"github.com/syncnotes/syncnotes-go/internal/store"
	"github.com/syncnotes/syncnotes-go/internal/store/sqlite"
)

func (a *app) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <room-id>",
		Short: "Join a room's chat",
		Long:  "Joins a room's realtime chat. Type messages and press Enter to send. Ctrl+C to leave.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := args[0]

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := a.api()
			if err != nil {
				return err
			}
			if _, err := a.sessions.Token(); err != nil {
				return err
			}

			cache := a.openCache()
			if cache != nil {
				defer cache.Close()
			}

			feed := chat.NewFeed(a.identityOrZero())

			// History first; live events dedup against it.
			history, err := client.RoomMessages(ctx, roomID)
			if err != nil {
				a.log.Warn().Err(err).Msg("could not load message history")
			}
			for _, msg := range history {
				if rec, ok := feed.Append(msg); ok {
					printMessage(rec)
				}
			}
			if cache != nil && len(history) > 0 {
				if err := cache.SaveMessages(ctx, roomID, history); err != nil {
					a.log.Warn().Err(err).Msg("could not cache history")
				}
			}

			endpoint, err := realtime.Endpoint(a.cfg.BaseURL, a.cfg.WSPath)
			if err != nil {
				return err
			}

			manager := realtime.NewManager(realtime.Config{
				Endpoint:       endpoint,
				ReconnectDelay: a.cfg.ReconnectDelay,
				HeartBeat:      a.cfg.HeartBeat,
			}, a.sessions, a.log)
			defer manager.Disconnect()

			manager.Connect(roomID,
				func(msg proto.ChatMessage) {
					rec, ok := feed.Append(msg)
					if !ok {
						return
					}
					printMessage(rec)
					if cache != nil {
						cctx, cancel := context.WithTimeout(context.Background(), time.Second)
						if err := cache.SaveMessages(cctx, roomID, []proto.ChatMessage{msg}); err != nil {
							a.log.Debug().Err(err).Msg("could not cache message")
						}
						cancel()
					}
				},
				func(status realtime.Status) {
					fmt.Printf("-- %s --\n", status)
				},
			)

			fmt.Printf("Joined room %s. Type to chat, Ctrl+C to leave.\n", roomID)

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					manager.SendMessage(line)
				}
			}
		},
	}
}

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		limit  int
		cached bool
	)

	cmd := &cobra.Command{
		Use:   "history <room-id>",
		Short: "Show a room's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := args[0]
			identity := a.identityOrZero()

			var msgs []proto.ChatMessage
			if cached {
				cache := a.openCache()
				if cache == nil {
					return fmt.Errorf("history cache unavailable at %s", a.cfg.CachePath)
				}
				defer cache.Close()

				var err error
				msgs, err = cache.ListMessages(cmd.Context(), roomID, limit)
				if err != nil {
					return err
				}
			} else {
				client, err := a.api()
				if err != nil {
					return err
				}
				msgs, err = client.RoomHistory(cmd.Context(), roomID)
				if err != nil {
					return err
				}
				if cache := a.openCache(); cache != nil {
					if err := cache.SaveMessages(cmd.Context(), roomID, msgs); err != nil {
						a.log.Warn().Err(err).Msg("could not cache history")
					}
					cache.Close()
				}
				if limit > 0 && len(msgs) > limit {
					msgs = msgs[len(msgs)-limit:]
				}
			}

			if len(msgs) == 0 {
				fmt.Println("No messages")
				return nil
			}

			feed := chat.NewFeed(identity)
			for _, msg := range msgs {
				if rec, ok := feed.Append(msg); ok {
					printMessage(rec)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "max messages to show (0 for all)")
	cmd.Flags().BoolVar(&cached, "cached", false, "read from the local cache instead of the backend")
	return cmd
}

// openCache opens the local history cache, degrading to nil on failure:
// chat works without it.
func (a *app) openCache() store.Cache {
	cache, err := sqlite.New(a.cfg.CachePath)
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.CachePath).Msg("history cache unavailable")
		return nil
	}
	return cache
}

func printMessage(rec chat.Message) {
	sender := rec.Username
	if rec.Mine {
		sender = "you"
	}
	if sender == "" {
		sender = "someone"
	}
	if ts := formatTimestamp(rec.Timestamp); ts != "" {
		fmt.Printf("[%s] %s: %s\n", ts, sender, rec.Content)
		return
	}
	fmt.Printf("%s: %s\n", sender, rec.Content)
}

// formatTimestamp renders epoch millis or RFC3339 input as a clock time,
// returning "" for anything it cannot parse.
func formatTimestamp(raw string) string {
	if raw == "" {
		return ""
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(millis).Format("15:04")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Local().Format("15:04")
	}
	return ""
}
