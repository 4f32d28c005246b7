package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/finalitylabs/blocksync/engine/common/synchronization"
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
	"github.com/finalitylabs/blocksync/module/chainsync"
	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/finalizer"
	"github.com/finalitylabs/blocksync/module/importer"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
	"github.com/finalitylabs/blocksync/module/metrics"
	"github.com/finalitylabs/blocksync/module/trace"
	"github.com/finalitylabs/blocksync/module/util"
	"github.com/finalitylabs/blocksync/module/verification"
	"github.com/finalitylabs/blocksync/network/codec/cbor"
	"github.com/finalitylabs/blocksync/network/p2p"
	bstorage "github.com/finalitylabs/blocksync/storage/badger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sync node",
	RunE:  runNode,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.String("datadir", "data", "directory of the block database")
	flags.String("value-log-size", "1GiB", "size of a database value log file, e.g. 256MiB")
	flags.String("node-key", "", "libp2p identity key file, a fresh identity is used when empty")
	flags.StringSlice("listen", p2p.DefaultConfig().ListenAddrs, "multiaddrs to listen on")
	flags.StringSlice("bootstrap", nil, "multiaddrs of peers to dial on startup")
	flags.String("metrics-addr", ":9090", "address of the prometheus metrics endpoint, disabled when empty")
	flags.String("tracing-endpoint", "", "OTLP gRPC collector spans are exported to, disabled when empty")
	flags.Float64("tracing-sample-rate", 0.1, "fraction of spans that are recorded")

	flags.String("genesis", "genesis", "payload of the genesis block")
	flags.Uint32("session-period", 100, "number of blocks per session")
	flags.StringSlice("authorities", nil, "hex encoded ed25519 public keys of the finality authorities")
	flags.Int("threshold", 0, "signatures required for a justification, defaults to a two thirds majority")

	flags.Uint("forest-limit", chainsync.DefaultForestLimit, "maximal number of pending blocks")
	flags.Duration("tick-period", synchronization.DefaultConfig().TickPeriod, "interval of periodic state broadcasts")
	flags.Float64("request-rate", float64(synchronization.DefaultConfig().RequestRateLimit), "requests served per second and peer")
	flags.Int("request-burst", synchronization.DefaultConfig().RequestRateBurst, "request burst allowed per peer")

	bindFlags(flags)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := loadNodeConfig(viper.GetViper())
	if err != nil {
		return err
	}
	log = log.With().Str("run_id", uuid.New().String()).Logger()

	authorities, err := parseAuthorities(cfg.Authorities)
	if err != nil {
		return err
	}
	threshold := cfg.threshold()
	sessionInfo, err := chain.NewSessionBoundaryInfo(cfg.SessionPeriod)
	if err != nil {
		return err
	}
	genesis := chain.Genesis([]byte(cfg.Genesis))
	verifier, err := verification.NewAuthorityVerifier(authorities, threshold, genesis)
	if err != nil {
		return fmt.Errorf("could not create verifier: %w", err)
	}

	nodeKey, err := loadNodeKey(cfg.NodeKey)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineCollector(registry)
	syncMetrics := metrics.NewSyncCollector(registry)
	cacheMetrics := metrics.NewCacheCollector(registry)

	valueLogSize, err := cfg.valueLogBytes()
	if err != nil {
		return err
	}
	db, err := badger.Open(badger.DefaultOptions(cfg.DataDir).
		WithValueLogFileSize(valueLogSize).
		WithLogger(nil))
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("could not close database")
		}
	}()

	chainDB := bstorage.NewChain(cacheMetrics, db)
	if err := chainDB.Bootstrap(chain.Justification{Header: genesis}); err != nil {
		return fmt.Errorf("could not bootstrap database: %w", err)
	}

	// the engine is created last, the callbacks only fire once components run
	var engine *synchronization.Engine
	fin := finalizer.NewFinalizer(log, db, func(header chain.Header) {
		engine.OnBlockFinalized(header)
	})
	imp := importer.New(log, chainDB, verifier, func(header chain.Header) {
		engine.OnBlockImported(header)
	})

	handler, err := chainsync.NewHandler(
		log,
		chainsync.Config{ForestLimit: cfg.ForestLimit},
		syncMetrics,
		chainDB,
		verifier,
		fin,
		imp,
		sessionInfo,
	)
	if err != nil {
		return fmt.Errorf("could not create sync handler: %w", err)
	}

	netConfig := p2p.DefaultConfig()
	netConfig.PrivateKey = nodeKey
	netConfig.ListenAddrs = cfg.Listen
	netConfig.Bootstrap = cfg.Bootstrap
	net, err := p2p.NewNetwork(log, netConfig, cbor.NewCodec(), engineMetrics)
	if err != nil {
		return fmt.Errorf("could not create network: %w", err)
	}

	var tracer module.Tracer = trace.NewNoopTracer()
	var traceExporter *trace.Tracer
	if cfg.TracingEndpoint != "" {
		traceExporter, err = trace.NewTracer(log, "syncnode", cfg.TracingEndpoint, cfg.TracingSampleRate)
		if err != nil {
			net.Close()
			return err
		}
		tracer = traceExporter
	}

	engine, err = synchronization.New(
		log,
		engineMetrics,
		syncMetrics,
		net,
		handler,
		clock.New(),
		synchronization.WithTickPeriod(cfg.TickPeriod),
		synchronization.WithRequestRateLimit(rate.Limit(cfg.RequestRate), cfg.RequestBurst),
		synchronization.WithTracer(tracer),
	)
	if err != nil {
		net.Close()
		return fmt.Errorf("could not create sync engine: %w", err)
	}

	log.Info().
		Str("peer_id", string(net.ID())).
		Strs("addrs", net.Addrs()).
		Int("authorities", len(authorities)).
		Int("threshold", threshold).
		Msg("sync node starting")

	if traceExporter != nil {
		defer func() {
			<-traceExporter.Done()
		}()
	}

	components := []component.Component{net, imp, engine}
	if cfg.MetricsAddr != "" {
		components = append(components, metrics.NewServer(log, cfg.MetricsAddr, registry))
	}
	return runComponents(cmd.Context(), components...)
}

// runComponents starts the components and blocks until a termination signal
// arrives or a component throws an irrecoverable error.
func runComponents(parent context.Context, components ...component.Component) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	readyDone := make([]module.ReadyDoneAware, 0, len(components))
	for _, c := range components {
		c.Start(signalerCtx)
		readyDone = append(readyDone, c)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		select {
		case <-util.AllReady(readyDone...):
			log.Info().Msg("sync node started")
		case <-gctx.Done():
		}
		return nil
	})
	group.Go(func() error {
		defer cancel()
		select {
		case err := <-errChan:
			return fmt.Errorf("irrecoverable error: %w", err)
		case <-gctx.Done():
			return nil
		}
	})

	err := group.Wait()
	cancel()

	select {
	case <-util.AllDone(readyDone...):
	case <-time.After(10 * time.Second):
		log.Warn().Msg("components did not shut down in time")
	}
	log.Info().Msg("sync node stopped")
	return err
}
