package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/libquassel/internal/buffer"
	"github.com/danmuck/libquassel/internal/client"
	"github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/hako/durafmt"
	"github.com/spf13/cobra"
)

func connectCmd(flags *rootFlags) *cobra.Command {
	var backlog int
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in, list buffers, and follow live messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backlog") {
				cfg.BacklogLimit = backlog
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.MetricsAddr != "" {
				gin.SetMode(gin.ReleaseMode)
				go func() {
					if err := observability.Serve(ctx, cfg.MetricsAddr, logging.Logger()); err != nil {
						logging.Warnf("quasselctl metrics addr=%s err=%v", cfg.MetricsAddr, err)
					}
				}()
			}

			out := cmd.OutOrStdout()
			started := time.Now()
			opts := cfg.ClientOptions()
			opts.OnReady = func(c *client.Conn) {
				fmt.Fprintf(out, "ready after %s\n", durafmt.Parse(time.Since(started).Round(time.Millisecond)).LimitFirstN(2))
				printBuffers(out, c.Buffers)
			}
			opts.OnMessage = func(b *buffer.Buffer, m *buffer.Message) {
				fmt.Fprintln(out, formatMessage(b, m))
			}

			conn, err := client.Dial(ctx, cfg.Addr, opts)
			if err != nil {
				return err
			}
			defer conn.Close()

			runErr := conn.Run(ctx)
			fmt.Fprintf(out, "session ended after %s, last lag %s\n",
				durafmt.Parse(time.Since(started).Round(time.Second)).LimitFirstN(2),
				formatLag(conn.Lag()))
			if ctx.Err() != nil {
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&backlog, "backlog", 0, "messages of backlog to request per buffer")
	return cmd
}

func printBuffers(w io.Writer, c *buffer.Collection) {
	for _, b := range c.All() {
		kind := "query"
		switch {
		case b.IsStatusBuffer():
			kind = "status"
		case b.IsChannel():
			kind = "channel"
		}
		fmt.Fprintf(w, "  [%d] net=%d %-7s %s\n", b.ID, b.Network, kind, b.Name)
	}
}

func formatMessage(b *buffer.Buffer, m *buffer.Message) string {
	name := m.Buffer.Name
	if b != nil {
		name = b.Name
	}
	marker := " "
	switch {
	case m.IsHighlight():
		marker = "!"
	case m.IsSelf():
		marker = ">"
	}
	return fmt.Sprintf("%s %s%s <%s> %s",
		m.Timestamp.Local().Format("15:04:05"), marker, name, m.SenderNick(), m.Content)
}

func formatLag(lag time.Duration) string {
	if lag <= 0 {
		return "unknown"
	}
	return durafmt.Parse(lag.Round(time.Millisecond)).LimitFirstN(1).String()
}
