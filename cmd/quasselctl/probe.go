package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/libquassel/internal/client"
	"github.com/danmuck/libquassel/internal/protocol"
	"github.com/danmuck/libquassel/internal/protocol/session"
	"github.com/spf13/cobra"
)

func probeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [addr]",
		Short: "Ask a core which protocol and connection features it selects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.addr = args[0]
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if limit := cfg.Session.ConnectTimeout + cfg.Session.HandshakeTimeout; limit > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, limit)
				defer cancel()
			}

			conn, reply, err := client.Probe(ctx, cfg.Addr, cfg.ClientOptions())
			if err != nil {
				return err
			}
			conn.Close()
			fmt.Fprintln(cmd.OutOrStdout(), formatProbe(cfg.Addr, reply))
			return nil
		},
	}
}

func formatProbe(addr string, reply session.ProbeReply) string {
	name := fmt.Sprintf("unknown(0x%02x)", reply.Protocol)
	if v, ok := protocol.ByID(reply.Protocol); ok {
		name = v.Name
	}
	var features []string
	if reply.ConnFeatures.Has(session.FeatureTLS) {
		features = append(features, "tls")
	}
	if reply.ConnFeatures.Has(session.FeatureCompression) {
		features = append(features, "compression")
	}
	if len(features) == 0 {
		features = append(features, "none")
	}
	return fmt.Sprintf("%s protocol=%s protocol_features=0x%04x features=%s",
		addr, name, reply.ProtocolFeatures, strings.Join(features, ","))
}
