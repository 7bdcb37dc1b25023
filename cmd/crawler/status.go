package main

import (
	"context"
	"fmt"
	"io"

	"github.com/alvmarrod/follow-weaver/internal/report"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status subcommand
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [ids...]",
		Short: "Print a summary of the last checkpoint without crawling",
		Long: `Print a summary of the last checkpoint without crawling.

With ids, print what the checkpoint knows about each of them instead.`,
		Args: cobra.ArbitraryArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	backend, err := storage.Open(cfg.StorageBackend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logrus.Warnf("Failed to close storage: %v", err)
		}
	}()

	if len(args) > 0 {
		return lookupIDs(cmd.Context(), cmd.OutOrStdout(), backend, args)
	}

	snap, found, err := storage.NewCheckpointer(backend).Load(cmd.Context())
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint found in %s\n", cfg.StoragePath())
		return nil
	}

	return report.NewMarkdownWriter(cmd.OutOrStdout()).Write(snap, nil)
}

// lookupIDs prints the stored state of each id. Each store is read once.
func lookupIDs(ctx context.Context, out io.Writer, backend storage.Backend, ids []string) error {
	quarantine, err := storage.NewErrorStore(backend).Load(ctx)
	if err != nil {
		return err
	}
	nodes, err := storage.NewNodeStore(backend).Load(ctx)
	if err != nil {
		return err
	}
	edges, err := storage.NewEdgeStore(backend).Load(ctx)
	if err != nil {
		return err
	}

	for _, raw := range ids {
		id := storage.NodeID(raw)

		if q, bad := quarantine[id]; bad {
			fmt.Fprintf(out, "%s: quarantined (%s)\n", id, q.Reason)
			continue
		}

		node := nodes[id]
		_, expanded := edges[id]
		switch {
		case node != nil && expanded:
			fmt.Fprintf(out, "%s: resolved (visits: %d)\n", id, node.VisitCount)
		case node != nil:
			fmt.Fprintf(out, "%s: node cached, follows not fetched\n", id)
		default:
			fmt.Fprintf(out, "%s: unknown\n", id)
		}
	}
	return nil
}
