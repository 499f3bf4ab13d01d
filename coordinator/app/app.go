package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/searchgrid/grid/coordinator/provider"
	"github.com/searchgrid/grid/coordinator/split"
	"github.com/searchgrid/grid/coordinator/statistics"
	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/config"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/diskspace"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/splitlock"
	"github.com/searchgrid/grid/qdb"
)

const mutatorDrainTimeout = 30 * time.Second

type App struct {
	cfg *config.Coordinator
	db  qdb.QDB

	mutator clusterstate.Mutator
	reader  *clusterstate.Reader
	locks   *splitlock.SplitLock
	client  *coreadmin.GrpcClient

	splitter  *split.Orchestrator
	finalizer *split.Finalizer
}

func NewApp(cfg *config.Coordinator, db qdb.QDB) *App {
	locks := splitlock.New(db)
	mutator := NewMutator(cfg, db, locks)
	reader := clusterstate.NewReader(db)
	client := coreadmin.NewGrpcClient(cfg.NodeAddrs)

	scfg := split.ConfigFromCoordinator(cfg)
	return &App{
		cfg:       cfg,
		db:        db,
		mutator:   mutator,
		reader:    reader,
		locks:     locks,
		client:    client,
		splitter:  split.NewOrchestrator(reader, mutator, locks, client, diskspace.NewNodeMetrics(client, scfg.Retry), scfg),
		finalizer: split.NewFinalizer(reader, mutator, locks, split.DefaultFinalizeInterval),
	}
}

// NewMutator picks the cluster state backend named by the state update
// mode. Both release split locks of splits they complete.
func NewMutator(cfg *config.Coordinator, db qdb.QDB, locks *splitlock.SplitLock) clusterstate.Mutator {
	hook := clusterstate.WithFinalizeHook(locks.OnSplitFinalized)
	if cfg.StateUpdateMode == config.StateUpdateDirect {
		return clusterstate.NewDirect(db, hook)
	}
	return clusterstate.NewSequencer(db, 0, hook)
}

// StartMutator starts a sequencer backend. It keeps applying changes after
// ctx is done so that splits interrupted by shutdown can still clean up;
// the returned stop applies what is queued and then stops it.
func StartMutator(ctx context.Context, m clusterstate.Mutator) (stop func()) {
	seq, ok := m.(*clusterstate.Sequencer)
	if !ok {
		return func() {}
	}
	seq.Start(context.WithoutCancel(ctx))
	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mutatorDrainTimeout)
		defer cancel()
		if err := seq.Sync(sctx); err != nil {
			gridlog.Zero.Warn().Err(err).Msg("failed to apply queued state changes")
		}
		seq.Stop()
	}
}

// Run serves the admin API and the metrics endpoint until ctx is done.
func (app *App) Run(ctx context.Context) error {
	gridlog.Zero.Info().
		Str("state-update-mode", app.cfg.StateUpdateMode).
		Msg("running coordinator app")

	stopMutator := StartMutator(ctx, app.mutator)
	defer func() {
		if err := app.client.Close(); err != nil {
			gridlog.Zero.Warn().Err(err).Msg("failed to close node connections")
		}
	}()

	collections := provider.NewCollectionsService(ctx, app.splitter, app.locks, coreadmin.NewStatusStore(app.db))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.finalizer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return app.ServeGrpcApi(gctx, collections)
	})
	g.Go(func() error {
		return app.ServeHttpApi(gctx)
	})

	err := g.Wait()
	collections.Wait()
	stopMutator()
	gridlog.Zero.Debug().Msg("exit coordinator app")
	return err
}

func (app *App) ServeGrpcApi(ctx context.Context, collections *provider.CollectionsService) error {
	serv := grpc.NewServer()
	reflection.Register(serv)
	coreadmin.RegisterHandler(serv, coreadmin.CollectionsService, collections)

	address := net.JoinHostPort(app.cfg.Host, app.cfg.GrpcApiPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		gridlog.Zero.Error().
			Err(err).
			Msg("error serve grpc coordinator service")
		return err
	}

	gridlog.Zero.Info().
		Str("address", address).
		Msg("serve grpc coordinator service")

	go func() {
		<-ctx.Done()
		serv.GracefulStop()
	}()
	return serv.Serve(listener)
}

func (app *App) ServeHttpApi(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", statistics.Handler())

	address := net.JoinHostPort(app.cfg.Host, app.cfg.HttpApiPort)
	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	gridlog.Zero.Info().
		Str("address", address).
		Msg("serve coordinator metrics")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		gridlog.Zero.Error().
			Err(err).
			Msg("error serve coordinator metrics")
		return err
	}
	return nil
}
