package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alvmarrod/follow-weaver/internal/api"
	"github.com/alvmarrod/follow-weaver/internal/config"
	"github.com/alvmarrod/follow-weaver/internal/crawler"
	"github.com/alvmarrod/follow-weaver/internal/fetcher"
	"github.com/alvmarrod/follow-weaver/internal/metrics"
	"github.com/alvmarrod/follow-weaver/internal/report"
	"github.com/alvmarrod/follow-weaver/internal/seeds"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/alvmarrod/follow-weaver/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const progressInterval = 10 * time.Second

type crawlOptions struct {
	depth       int
	ids         []string
	backend     string
	dbPath      string
	metricsAddr string
	summaryPath string
}

// NewCrawlCmd creates the crawl subcommand
func NewCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl [seeds...]",
		Short: "Crawl the follow graph breadth-first from the given seeds",
		Long: `Crawl the follow graph breadth-first from the given seeds.

Seeds are handles (@alice), aliases from the config file, or raw ids
(id:12345 or --id 12345). When a checkpoint exists the crawl resumes from it
and the seeds are ignored.

The first SIGINT/SIGTERM stops the crawl after a final checkpoint. A second
one saves an emergency checkpoint and exits immediately.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.depth, "depth", "d", 0, "Target depth (overrides max_depth)")
	cmd.Flags().StringSliceVar(&opts.ids, "id", nil, "Seed by raw id (repeatable)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Checkpoint backend: sqlite or badger")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Checkpoint database path")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().StringVarP(&opts.summaryPath, "summary", "s", "", "Write the markdown summary to this file instead of stdout")

	return cmd
}

// apply copies the flags that were set onto cfg. Returns true if seeds were
// given on the command line.
func (o *crawlOptions) apply(cmd *cobra.Command, cfg *config.Config, args []string) bool {
	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.MaxDepth = o.depth
	}
	if flags.Changed("backend") {
		cfg.StorageBackend = o.backend
	}
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("summary") {
		cfg.SummaryPath = o.summaryPath
	}

	if len(args) == 0 && len(o.ids) == 0 {
		return false
	}
	list := slices.Clone(args)
	for _, id := range o.ids {
		list = append(list, seeds.IDPrefix+id)
	}
	cfg.Seeds = list
	return true
}

func runCrawl(cmd *cobra.Command, args []string, opts *crawlOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	explicitSeeds := opts.apply(cmd, cfg, args)
	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	logrus.Infof("Follow Weaver %s starting run %s", version.String(), runID)
	logrus.Infof("Configuration loaded: depth=%d, checkpoint_every=%d, budget=%d/%ds, backoff=%s",
		cfg.MaxDepth, cfg.CheckpointEvery, cfg.RequestsPerWindow, cfg.WindowSeconds, cfg.BackoffPolicy)

	// Initialize storage
	backend, err := storage.Open(cfg.StorageBackend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logrus.Errorf("Failed to close storage: %v", err)
		}
	}()
	logrus.Infof("Checkpoint store initialized: %s (%s)", cfg.StoragePath(), cfg.StorageBackend)

	client, err := api.NewHTTPClient(api.HTTPConfig{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.APIToken,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := client.Verify(ctx); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("%w: %v", crawler.ErrAuthentication, err)
		}
		return fmt.Errorf("failed to verify credentials: %w", err)
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	tracker := metrics.NewTracker(runID)
	eng := crawler.NewEngine(fetcher.New(client, cfg.Budget()), storage.NewCheckpointer(backend), crawler.Options{
		TargetDepth:     cfg.MaxDepth,
		CheckpointEvery: cfg.CheckpointEvery,
		MaxFollowing:    cfg.MaxFollowing,
		Policy:          policy,
		RunID:           runID,
		MetricsCallback: trackerCallback(tracker),
	})

	// Resume from the last checkpoint, or seed a fresh crawl
	resumed, err := eng.Restore(ctx)
	if err != nil {
		return err
	}
	if resumed {
		if explicitSeeds {
			logrus.Warn("Checkpoint found, ignoring the seeds given on the command line")
		}
	} else {
		logrus.Info("No checkpoint found, starting fresh crawl from seeds")
		ids, err := seeds.NewResolver(client, cfg.Aliases).Resolve(ctx, cfg.Seeds)
		if err != nil {
			return fmt.Errorf("failed to resolve seeds: %w", err)
		}
		n := eng.Seed(ids)
		if n == 0 {
			return crawler.ErrNoSeeds
		}
		tracker.AddNodesDiscovered(n)
	}

	finished := make(chan struct{})
	defer close(finished)
	watchSignals(cancel, finished, func() {
		logrus.Warn("Attempting emergency checkpoint...")
		saveCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := eng.Checkpoint(saveCtx); err != nil {
			logrus.Errorf("Emergency checkpoint failed: %v", err)
		} else {
			logrus.Info("Emergency checkpoint succeeded")
		}
		if err := tracker.WriteToFile(cfg.MetricsPath, "forced_exit"); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
	})

	// The crawl, the progress logger and the metrics server share one group.
	// The helpers stop once the crawl returns.
	g, gctx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	var summary *crawler.Summary
	g.Go(func() error {
		defer stopAux()
		var runErr error
		summary, runErr = eng.Run(gctx)
		return runErr
	})
	g.Go(func() error {
		logProgress(auxCtx, eng, tracker)
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(auxCtx, cfg.MetricsAddr)
		})
	}
	runErr := g.Wait()

	reason := crawler.ReasonInterrupted
	if summary != nil {
		reason = summary.Reason
	}

	logrus.Info("Step 1/2: Writing final metrics...")
	p := eng.Progress()
	tracker.SetFrontier(p.Current, p.Next)
	logrus.Info("Final stats: " + tracker.LogProgress())
	if m := tracker.GetSnapshot(); m.RequestsSent > 0 {
		logrus.Infof("API: %d requests, avg %dms, %d checkpoints", m.RequestsSent, m.AvgFetchTimeMs, m.Checkpoints)
	}
	if err := tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	logrus.Info("Step 2/2: Writing summary...")
	if err := writeSummary(cmd.OutOrStdout(), cfg.SummaryPath, eng.Snapshot(), summary); err != nil {
		logrus.Errorf("Failed to write summary: %v", err)
	}

	if runErr != nil {
		return runErr
	}
	logrus.Infof("Crawl %s complete (%s)", runID, reason)
	return nil
}

// watchSignals cancels the crawl on the first signal. A second signal runs
// emergency and exits with status 1. Watching stops when finished closes.
func watchSignals(cancel context.CancelFunc, finished <-chan struct{}, emergency func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logrus.Infof("Received signal: %v", sig)
			logrus.Info("Initiating graceful shutdown, checkpointing after the current step...")
			cancel()
		case <-finished:
			return
		}

		select {
		case sig := <-sigChan:
			logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
			emergency()
			os.Exit(1)
		case <-finished:
		}
	}()
}

// logProgress logs the counters every progressInterval until ctx is done
func logProgress(ctx context.Context, eng *crawler.Engine, tracker *metrics.Tracker) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p := eng.Progress()
			tracker.SetFrontier(p.Current, p.Next)
			logrus.Infof("%s | Frontier: %d current, %d next", tracker.LogProgress(), p.Current, p.Next)
		case <-ctx.Done():
			return
		}
	}
}

// trackerCallback routes engine events into the tracker
func trackerCallback(tracker *metrics.Tracker) func(crawler.Event, int) {
	return func(ev crawler.Event, n int) {
		switch ev {
		case crawler.EventProcessed:
			tracker.IncrementProcessed()
		case crawler.EventRequest:
			tracker.IncrementRequests()
		case crawler.EventFetchTime:
			tracker.RecordFetchTime(time.Duration(n) * time.Millisecond)
		case crawler.EventRateLimited:
			tracker.IncrementRateLimited()
		case crawler.EventQuarantined:
			tracker.IncrementNodesQuarantined()
		case crawler.EventNodeResolved:
			tracker.IncrementNodesResolved()
		case crawler.EventEdgesRecorded:
			tracker.AddEdgesRecorded(n)
		case crawler.EventDiscovered:
			tracker.AddNodesDiscovered(n)
		case crawler.EventCheckpoint:
			tracker.IncrementCheckpoints()
		case crawler.EventDepth:
			tracker.SetDepth(n)
		}
	}
}

// writeSummary renders the markdown report to path, or to out when path is empty
func writeSummary(out io.Writer, path string, snap *storage.Snapshot, summary *crawler.Summary) error {
	if path == "" {
		return report.NewMarkdownWriter(out).Write(snap, summary)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := report.NewMarkdownWriter(f).Write(snap, summary); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logrus.Infof("Summary written to %s", path)
	return nil
}
