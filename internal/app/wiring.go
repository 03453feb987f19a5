package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	api "poolstats/internal/api/http"
	"poolstats/internal/api/http/mw"
	"poolstats/internal/archive/clickhouse"
	"poolstats/internal/chain"
	"poolstats/internal/config"
	dedupe "poolstats/internal/dedupe/redis"
	"poolstats/internal/engine"
	ingest "poolstats/internal/ingest/nats"
	"poolstats/internal/metrics"
	"poolstats/internal/security"
	"poolstats/internal/store"
	"poolstats/internal/tokens"
	"poolstats/internal/valuation"
)

type Container struct {
	app *App

	// infra
	redis    *store.Redis
	ch       *clickhouse.Conn
	chWriter *clickhouse.Writer

	// services
	engine   *engine.Engine
	consumer *ingest.Consumer

	cleanupF func()

	// servers
	httpSrv *api.Server

	// metrics
	profiler *pyroscope.Profiler

	shutdownTimeout time.Duration
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer cancel()

	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}

	if c.cleanupF != nil {
		c.cleanupF()
	}
	return nil
}

// natsReadiness adapts the consumer's connectivity flag to the readiness probe.
type natsReadiness struct {
	c *ingest.Consumer
}

func (n natsReadiness) Health(context.Context) error {
	if !n.c.Ready() {
		return errors.New("nats connection is not ready")
	}
	return nil
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (*Container, func()) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(cfg.App.InstanceID, &cfg.Metrics.Pyroscope)
	if err != nil {
		lg.Panicf("Pyroscope initialize failed: %v", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	// Redis client with the entity collections on top
	rdb, err := store.NewRedis(ctx, &cfg.Stores.Redis)
	if err != nil {
		lg.Panicf("Failed to initialize redis client: %v", err)
	}
	ents := store.NewEntities(rdb)
	lg.Infof("Successfully initialize Redis entity store, addr=%s", cfg.Stores.Redis.Addr)

	// Dedupe
	deduper, err := dedupe.NewDeduper(lg, &cfg.Dedupe, rdb.Client())
	if err != nil {
		lg.Panicf("Failed to initialize redis deduper: %v", err)
	}
	lg.Infof("Successfully initialize Deduper redis_client by prefix %s", cfg.Dedupe.Prefix)

	// Chain adapter: rate oracle + token metadata
	chainCl, err := chain.New(lg, &cfg.Chain)
	if err != nil {
		lg.Panicf("Failed to initialize chain client: %v", err)
	}
	lg.Infof("Successfully initialize chain client, rpc=%s", cfg.Chain.RPCURL)

	refDecimals, err := chainCl.Decimals(ctx, cfg.Network.ReferenceToken)
	if err != nil {
		lg.Warnf("Failed to resolve reference token decimals, falling back to 18: %v", err)
		refDecimals = 18
	}

	conv, err := valuation.NewConverter(chainCl, cfg.Network.ReferenceToken, refDecimals)
	if err != nil {
		lg.Panicf("Failed to initialize valuation converter: %v", err)
	}

	registry, err := tokens.NewRegistry(lg, ents.Tokens, chainCl, tokens.NativeAsset{
		Address:  cfg.Network.NativeToken,
		Name:     "Ether",
		Symbol:   "ETH",
		Decimals: 18,
	})
	if err != nil {
		lg.Panicf("Failed to initialize token registry: %v", err)
	}

	// ClickHouse archive is optional; without it records stay in Redis only
	var (
		ch       *clickhouse.Conn
		chWriter *clickhouse.Writer
		sink     engine.RecordSink
	)
	if cfg.Stores.ClickHouse.Enabled {
		if ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			lg.Panicf("Failed to initialize clickhouse client: %v", err)
		}
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

		chWriter = clickhouse.NewWriter(lg, ch.Native, cfg.Stores.ClickHouse)
		sink = chWriter
		lg.Info("Successfully initialize clickhouse writer")
	}

	// Aggregation engine
	eng, err := engine.New(lg, ents, registry, conv,
		engine.Addresses{
			Protocol:     cfg.Network.ProtocolAddress,
			GovToken:     cfg.Network.GovToken,
			GovPoolToken: cfg.Network.GovPoolToken,
		},
		engine.Info{
			Name:    cfg.Network.Name,
			Slug:    cfg.Network.Slug,
			Network: "mainnet",
		},
		sink,
	)
	if err != nil {
		lg.Panicf("Failed to initialize aggregation engine: %v", err)
	}
	lg.Infof("Successfully initialize engine for %s", cfg.Network.Slug)

	// NATS consumer
	consumer, err := ingest.New(lg, &cfg.Ingest, eng, deduper)
	if err != nil {
		lg.Panicf("Failed to initialize nats consumer: %v", err)
	}

	var verifier *security.RS256Verifier
	if cfg.Security.JWT.Enabled {
		if verifier, err = security.NewRS256Verifier(&cfg.Security.JWT); err != nil {
			lg.Panicf("Failed to initialize JWT verifier: %v", err)
		}
		lg.Info("Successfully initialize JWT-Verifier")
	}

	// HTTP Server
	apiHandlers := api.NewAPI(api.Deps{
		Log:        lg,
		Entities:   ents,
		ProtocolID: strings.ToLower(cfg.Network.ProtocolAddress),
		Checks: map[string]api.HealthChecker{
			"redis": rdb,
			"nats":  natsReadiness{c: consumer},
		},
	})

	var jwtMW *mw.JWTMiddleware
	if verifier != nil {
		jwtMW = mw.NewJWT(verifier)
	}
	var corsMW *mw.CORSMiddleware
	if cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORS(&cfg.API.HTTP.CORS)
	}

	router := api.BuildRouter(apiHandlers, mw.NewLogging(lg), jwtMW, corsMW)
	httpSrv := api.NewServer(lg, &cfg.API.HTTP, router)
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:             NewApp(lg, httpSrv, consumer),
		redis:           rdb,
		ch:              ch,
		chWriter:        chWriter,
		engine:          eng,
		consumer:        consumer,
		httpSrv:         httpSrv,
		profiler:        profiler,
		shutdownTimeout: cfg.App.ShutdownTimeout,
	}

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if c.profiler != nil {
			if err = c.profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		}

		if c.chWriter != nil {
			if err = c.chWriter.Close(ctxClean); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
			}
		}

		if c.ch != nil {
			if err = c.ch.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
			}
		}

		chainCl.Close()

		if err = rdb.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF redis client: %v", err)
		}

		lg.Info("Successfully cleaned up dependency")
	}

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF
}
