package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kindredhq/intake/client"
	"github.com/kindredhq/intake/internal/config"
	"github.com/kindredhq/intake/internal/intake"
	"github.com/kindredhq/intake/internal/store"
	"github.com/kindredhq/intake/pkg/health"
	"github.com/kindredhq/intake/pkg/limits"
	"github.com/kindredhq/intake/pkg/live"
	"github.com/kindredhq/intake/pkg/logging"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
	"github.com/kindredhq/intake/pkg/protocol"
	"github.com/kindredhq/intake/pkg/shutdown"
	"github.com/kindredhq/intake/pkg/state"
)

const (
	readHeaderTimeout = 10 * time.Second

	// A session may burst a full form's worth of images, then one per second.
	uploadRate  = 1
	uploadBurst = media.GalleryCapacity + 2

	maxConnsPerIP = 20
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the live intake page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}
}

// app is the wired web adapter.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	profiles store.ProfileStore
	manager  *live.Manager
	server   *http.Server
	shutdown *shutdown.Handler

	stopSweeps context.CancelFunc
	sweepCtx   context.Context
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	catalog, err := profile.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	cache, err := media.NewPreviewCache(cfg.PreviewCacheSize, media.WithEvictHook(func(id string) {
		logger.Debug("preview evicted", logging.String("ref", id))
	}))
	if err != nil {
		return nil, err
	}
	stager := media.NewStager(media.DefaultStagerConfig(), cache, media.WithLogger(logger))

	codecs := protocol.NewCodecRegistry()
	if err := codecs.SetDefault(cfg.Codec); err != nil {
		return nil, err
	}

	profiles, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	snapshots := state.NewMemoryStore(0)
	persister := intake.NewSnapshotPersister(snapshots, state.WithTTL(cfg.SnapshotTTL))

	icfg := intake.DefaultConfig()
	icfg.Catalog = catalog
	icfg.Stager = stager
	icfg.Logger = logger
	icfg.OnComplete = func(ctx context.Context, sessionID string, rec profile.Record) {
		id, err := profiles.Save(ctx, sessionID, rec)
		if err != nil {
			logger.Error("profile not saved", logging.String("session", sessionID), logging.Err(err))
			return
		}
		logger.Info("profile saved", logging.String("session", sessionID), logging.String("id", id))
	}

	mcfg := live.DefaultManagerConfig()
	mcfg.SessionTTL = cfg.SessionTTL
	manager := live.NewManager(intake.NewFactory(icfg), mcfg,
		live.WithPersister(persister),
		live.WithManagerLogger(logger),
	)

	checker := health.NewChecker(health.WithVersion(version), health.WithLogger(logger))
	checker.AddCriticalCheck("store", health.PingCheck(profiles.Ping), 2*time.Second)
	checker.AddCheck("sessions", health.CapacityCheck("sessions", manager.Count, mcfg.MaxSessions), time.Second)

	scfg := live.DefaultServerConfig()
	scfg.Origins = live.OriginPolicy{AllowedOrigins: cfg.AllowedOrigins, InsecureDevMode: cfg.DevMode}
	opts := []live.ServerOption{
		live.WithCodecs(codecs),
		live.WithServerLogger(logger),
		live.WithPreviews(cache.Handler()),
		live.WithAssets(client.Handler()),
		live.WithUploadLimit(limits.NewTokenBucket(uploadRate, uploadBurst, mcfg.MaxSessions)),
		live.WithConnectionLimit(limits.NewConnectionLimiter(maxConnsPerIP)),
		live.WithRoute("GET /{$}", http.RedirectHandler(scfg.MountPath, http.StatusFound)),
	}
	for pattern, h := range checker.Routes() {
		opts = append(opts, live.WithRoute(pattern, h))
	}
	srv := live.NewServer(manager, scfg, opts...)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		profiles: profiles,
		manager:  manager,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdown: shutdown.NewHandler(nil, logger),
	}
	a.sweepCtx, a.stopSweeps = context.WithCancel(context.Background())

	a.shutdown.RegisterFunc("http", shutdown.PriorityHTTP, a.server.Shutdown)
	a.shutdown.RegisterFunc("sessions", shutdown.PrioritySessions, func(context.Context) error {
		a.stopSweeps()
		manager.Shutdown()
		return nil
	})
	a.shutdown.RegisterCloser("profiles", shutdown.PriorityStore, profiles)
	a.shutdown.RegisterCloser("snapshots", shutdown.PriorityCache, snapshots)
	return a, nil
}

// run serves until ctx is done or the listener fails, then tears down.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("intake listening", logging.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.manager.Run(a.sweepCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("intake shutting down")
		return a.shutdown.Shutdown(context.Background())
	})
	return g.Wait()
}
