// Command espresso-persistence runs the consensus persistence store as a
// standalone service, configured through internal/config (component L):
// "serve" runs the decide-event watcher, the dual-threshold pruner and a
// Prometheus metrics endpoint; "migrate", "prune" and "inspect" are
// one-shot commands. The binary does not construct an epoch membership
// coordinator.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm/logger"

	"github.com/Himess/espresso-network/internal/config"
	"github.com/Himess/espresso-network/internal/logging"
	"github.com/Himess/espresso-network/internal/metrics"
	"github.com/Himess/espresso-network/pkg/consensus/events"
	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/storage"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

func main() {
	logging.Init(log.LevelInfo)

	app := &cli.App{
		Name:  "espresso-persistence",
		Usage: "consensus persistence store and epoch membership coordinator",
		Flags: config.CLIFlags(),
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			pruneCommand,
			inspectCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("espresso-persistence exited with error", "err", err)
	}
}

func openStore(c *cli.Context) (*persistence.Store, storage.Engine, error) {
	cfg := config.FromCLIContext(c)

	engine, err := storage.Open(c.Context, cfg.StorageURI, cfg.PoolSize, logger.Default.LogMode(logger.Warn))
	if err != nil {
		return nil, nil, fmt.Errorf("open storage engine: %w", err)
	}

	met := metrics.New(prometheus.DefaultRegisterer)
	store := persistence.New(engine, log.Root(), met)
	return store, engine, nil
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the decide-event watcher and pruner until signalled to stop",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "metrics-addr", Value: ":9090", Usage: "Prometheus metrics listen address"},
		&cli.DurationFlag{Name: "decide-poll-interval", Value: time.Second, Usage: "how often to check for new decide events"},
		&cli.DurationFlag{Name: "prune-interval", Value: time.Minute, Usage: "how often to run the pruner"},
	},
	Action: func(c *cli.Context) error {
		store, engine, err := openStore(c)
		if err != nil {
			return err
		}
		defer engine.Close()

		cfg := config.FromCLIContext(c)
		pruneCfg, stopWatch, err := config.WatchPruneConfig(c.Context, cfg.PruneOverridePath, cfg.Prune, store.SetPruneConfig, log.Root())
		if err != nil {
			return fmt.Errorf("load prune config: %w", err)
		}
		defer stopWatch()
		store.SetPruneConfig(pruneCfg)

		ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go serveMetrics(ctx, c.String("metrics-addr"))

		consumer := events.ConsumerFunc(func(ctx context.Context, event types.Event) error {
			log.Info("decide event emitted", "view", event.ViewNumber, "leaves", len(event.Decide.LeafChain))
			return nil
		})

		go func() {
			if err := store.WatchDecide(ctx, consumer, c.Duration("decide-poll-interval")); err != nil && ctx.Err() == nil {
				log.Error("decide watcher stopped", "err", err)
			}
		}()

		ticker := time.NewTicker(c.Duration("prune-interval"))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("shutting down")
				return nil
			case <-ticker.C:
				view, err := store.LoadAnchorView(ctx)
				if err != nil {
					log.Warn("prune: failed to load anchor view", "err", err)
					continue
				}
				if err := store.Prune(ctx, view, store.PruneConfig()); err != nil {
					log.Warn("prune pass failed", "err", err)
				}
			}
		}
	},
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", "err", err)
	}
}

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "migrate the legacy schema to the v2 layout",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "cpu-profile", Usage: "write a pprof CPU profile for the duration of the migration"},
	},
	Action: func(c *cli.Context) error {
		if c.Bool("cpu-profile") {
			defer profile.Start(profile.CPUProfile).Stop()
		}

		store, engine, err := openStore(c)
		if err != nil {
			return err
		}
		defer engine.Close()

		cfg := config.FromCLIContext(c)
		start := time.Now()
		if err := store.MigrateAll(c.Context, cfg.MigrationBatchSize); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migration complete", "elapsed", time.Since(start))
		return nil
	},
}

var pruneCommand = &cli.Command{
	Name:  "prune",
	Usage: "run a single pruner pass at the current anchor view",
	Action: func(c *cli.Context) error {
		store, engine, err := openStore(c)
		if err != nil {
			return err
		}
		defer engine.Close()

		cfg := config.FromCLIContext(c)
		view, err := store.LoadAnchorView(c.Context)
		if err != nil {
			return fmt.Errorf("load anchor view: %w", err)
		}
		if err := store.Prune(c.Context, view, cfg.Prune); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		log.Info("prune pass complete", "view", view)
		return nil
	},
}

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "print a summary of the store's current state",
	Action: func(c *cli.Context) error {
		store, engine, err := openStore(c)
		if err != nil {
			return err
		}
		defer engine.Close()

		anchorView, err := store.LoadAnchorView(c.Context)
		if err != nil {
			return fmt.Errorf("load anchor view: %w", err)
		}
		stakes, err := store.LoadLatestStake(c.Context, 5)
		if err != nil {
			return fmt.Errorf("load latest stake: %w", err)
		}
		epochs, err := store.LoadStartEpochInfo(c.Context, 5)
		if err != nil {
			return fmt.Errorf("load start epoch info: %w", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"anchor view", "latest stake epochs", "latest drb epochs"})
		table.Append([]string{
			fmt.Sprintf("%d", anchorView),
			formatStakeEpochs(stakes),
			formatEpochInfos(epochs),
		})
		table.Render()
		return nil
	},
}

func formatStakeEpochs(stakes []types.StakeTable) string {
	if len(stakes) == 0 {
		return "(none)"
	}
	out := ""
	for i, s := range stakes {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", s.Epoch)
	}
	return out
}

func formatEpochInfos(infos []types.EpochInfo) string {
	if len(infos) == 0 {
		return "(none)"
	}
	out := ""
	for i, info := range infos {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", info.Epoch)
	}
	return out
}
