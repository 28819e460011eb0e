package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farm-console/internal/config"
	"farm-console/internal/db"
	"farm-console/internal/kafka"
	"farm-console/internal/logging"
	"farm-console/internal/models"
	"farm-console/internal/notification"
	"farm-console/internal/providers"
	"farm-console/internal/realtime"
	"farm-console/internal/rest"
	"farm-console/internal/store"
	"farm-console/internal/tokenstore"
)

const (
	pingPeriod   = 54 * time.Second
	tasksPath    = "/management-tasks"
	redisPrefix  = "farm-console"
	setupTimeout = 10 * time.Second
)

// Service wires the push connection, the real-time store and the optional
// sinks into one process.
type Service struct {
	config config.Config
	logger *logging.Logger

	Tokens   tokenstore.Store
	Manager  *realtime.Manager
	Store    *store.Store
	Notifier *notification.Service
	Relay    *Relay
	Backend  *rest.Client

	archive *db.DB
	mirror  *kafka.Mirror
	closers []func()
}

// New builds every component named by cfg. Optional sinks are skipped when
// their settings are empty.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Service, error) {
	s := &Service{config: cfg, logger: logger}

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	tokens, err := OpenTokenStore(setupCtx, cfg)
	if err != nil {
		return nil, err
	}
	s.Tokens = tokens
	if r, ok := tokens.(*tokenstore.Redis); ok {
		s.closers = append(s.closers, func() { _ = r.Close() })
	}
	tokenSource := tokenstore.NewTokenSource(tokens, cfg.TokenStore.Key, logger)

	endpoint, err := cfg.SocketURL()
	if err != nil {
		s.Stop()
		return nil, err
	}

	router := realtime.NewRouter(nil, logger)
	s.Manager = realtime.NewManager(realtime.Options{
		Endpoint:             endpoint,
		TokenParam:           cfg.WebSocket.TokenParam,
		MaxReconnectAttempts: cfg.WebSocket.MaxReconnectAttempts,
		Backoff:              realtime.Backoff{Base: cfg.WebSocket.BaseDelay, Max: cfg.WebSocket.MaxDelay},
		PingPeriod:           pingPeriod,
	}, tokenSource, router, logger)
	s.Backend = rest.NewClient(cfg.Backend.BaseURL, tokenSource)

	s.Store = store.New(logger)
	s.Relay = NewRelay(logger)
	router.Observe(s.Store)
	router.Observe(s.Relay)

	if cfg.Kafka.Broker != "" {
		s.mirror, err = kafka.NewMirror(kafka.Config{Broker: cfg.Kafka.Broker, Topic: cfg.Kafka.Topic}, logger)
		if err != nil {
			s.Stop()
			return nil, err
		}
		router.Observe(s.mirror)
		s.closers = append(s.closers, func() {
			if err := s.mirror.Close(); err != nil {
				logger.Errorf("Failed to flush kafka mirror: %v", err)
			}
		})
	}

	var sinks []notification.Sink
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.RateLimit, logger)
		if err != nil {
			s.Stop()
			return nil, err
		}
		sinks = append(sinks, notification.Sink{
			Name:   "telegram",
			Accept: notification.HighSeverityUnread,
			Send:   tg.SendAlert,
		})
	}
	if cfg.DB.DSN != "" {
		s.archive, err = db.New(setupCtx, cfg.DB.DSN)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.closers = append(s.closers, s.archive.Close)
		if err := s.archive.Migrate(setupCtx); err != nil {
			s.Stop()
			return nil, err
		}
		sinks = append(sinks, archiveSink(s.archive))
	}
	s.Notifier = notification.New(logger, notification.Config{
		QueueSize:  cfg.Notification.QueueSize,
		MaxWorkers: cfg.Notification.MaxWorkers,
	}, sinks...)
	s.Store.OnAlert(s.Notifier.QueueAlert)

	return s, nil
}

// OpenTokenStore opens the credential store selected by cfg.
func OpenTokenStore(ctx context.Context, cfg config.Config) (tokenstore.Store, error) {
	switch cfg.TokenStore.Kind {
	case "", "memory":
		return tokenstore.NewMemory(), nil
	case "redis":
		r, err := tokenstore.NewRedis(cfg.TokenStore.RedisURL, redisPrefix)
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore.Kind)
	}
}

// Archive returns the alert archive, or nil when none is configured.
func (s *Service) Archive() *db.DB {
	return s.archive
}

// Start launches the notification workers and opens the push connection
// when a token is already stored.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.Notifier.Start(wg)
	go s.Manager.Connect()
}

// Stop disposes the connection and releases every resource.
func (s *Service) Stop() {
	if s.Manager != nil {
		s.Manager.Close()
	}
	if s.Notifier != nil {
		s.Notifier.Stop()
	}
	if s.Relay != nil {
		s.Relay.CloseAll()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Login stores a fresh token and (re)opens the connection with it.
func (s *Service) Login(ctx context.Context, token string) error {
	if token == "" {
		return realtime.ErrNoToken
	}
	if err := s.Tokens.Set(ctx, s.config.TokenStore.Key, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	s.Manager.Disconnect()
	s.Manager.Connect()
	return nil
}

// Logout forgets the token, closes the connection and clears the store.
func (s *Service) Logout(ctx context.Context) error {
	s.Manager.Disconnect()
	s.Store.ClearRealTimeData()
	if err := s.Tokens.Remove(ctx, s.config.TokenStore.Key); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// RefreshTasks reloads the task list from the backend.
func (s *Service) RefreshTasks(ctx context.Context) ([]models.ManagementTask, error) {
	var tasks []models.ManagementTask
	if err := s.Backend.GetJSON(ctx, tasksPath, &tasks); err != nil {
		return nil, err
	}
	s.Store.SyncTasks(tasks)
	s.logger.Infof("Synced %d tasks from backend", len(tasks))
	return s.Store.Snapshot().RecentTasks, nil
}
