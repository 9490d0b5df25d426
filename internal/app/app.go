package app

import (
	"context"
	"errors"
	"fmt"
	grpcapp "github.com/14kear/online_voting/voting-engine/internal/app/grpc"
	httpapp "github.com/14kear/online_voting/voting-engine/internal/app/http"
	"github.com/14kear/online_voting/voting-engine/internal/config"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/handlers"
	"github.com/14kear/online_voting/voting-engine/internal/metrics"
	"github.com/14kear/online_voting/voting-engine/internal/middleware"
	"github.com/14kear/online_voting/voting-engine/internal/notifier"
	"github.com/14kear/online_voting/voting-engine/internal/repo/memory"
	"github.com/14kear/online_voting/voting-engine/internal/repo/postgres"
	"github.com/14kear/online_voting/voting-engine/internal/services"
	"github.com/14kear/online_voting/voting-engine/internal/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"log/slog"
)

type storage interface {
	services.PollStorage
	services.VoterStorage
	services.BallotStorage
	services.LogStorage
	services.UserProvider
}

type App struct {
	log        *slog.Logger
	HTTPServer *httpapp.App
	GRPCServer *grpcapp.App
	Voting     *services.OnlineVoting
	refresher  *workers.TallyRefresher
	closer     *workers.DeadlineCloser
	closeStore func() error
}

func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.NewApp"

	store, closeStore, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New("voting", reg)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var announcer services.Notifier = notifier.NewLogNotifier(log)
	if cfg.Notifier.WebhookURL != "" {
		announcer = notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout)
	}

	refresher := workers.NewTallyRefresher(log, cfg.Voting.TallyWorkers, cfg.Voting.TallyTimeout)

	votingService := services.NewOnlineVoting(
		log, store, store, store, store, store, announcer, refresher, m, cfg.Voting,
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.Secret)
	votingHandler := handlers.NewVotingHandler(log, votingService)

	httpApp := httpapp.NewApp(
		log, cfg.HTTP.Port, cfg.HTTP.AllowOrigins, votingHandler,
		authMiddleware.Middleware(), authMiddleware.Optional(), reg,
	)

	return &App{
		log:        log,
		HTTPServer: httpApp,
		GRPCServer: grpcapp.NewApp(log, cfg.GRPC.Port),
		Voting:     votingService,
		refresher:  refresher,
		closer:     workers.NewDeadlineCloser(log, votingService, cfg.Voting.CloseCheckInterval),
		closeStore: closeStore,
	}, nil
}

func newStorage(cfg *config.Config) (storage, func() error, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		users := make([]entity.User, 0, len(cfg.SeedUsers))
		for _, u := range cfg.SeedUsers {
			users = append(users, entity.User{ID: u.ID, Name: u.Name, Inactive: u.Inactive, PartyID: u.Party})
		}
		return memory.NewStore(users), func() error { return nil }, nil
	case config.StorageDriverPostgres:
		s, err := postgres.New(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Start launches the background workers and marks the engine as serving.
// Servers are run by the caller.
func (a *App) Start(ctx context.Context) {
	a.refresher.Start(ctx, a.Voting.RefreshResults)
	a.closer.Start(ctx)
	a.GRPCServer.SetServing(true)
}

func (a *App) Stop(ctx context.Context) error {
	a.GRPCServer.SetServing(false)

	var errs []error
	if err := a.HTTPServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	a.GRPCServer.Stop()

	a.closer.Stop()
	a.refresher.Stop()

	if err := a.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	return errors.Join(errs...)
}
