package notification

import (
	"context"
	"sync"
	"time"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

// Sink delivers one alert somewhere outside the process.
type Sink struct {
	Name string
	// Accept filters alerts; nil accepts everything.
	Accept func(models.Alert) bool
	Send   func(context.Context, models.Alert) error
}

// HighSeverityUnread accepts only new urgent alerts.
func HighSeverityUnread(a models.Alert) bool {
	return a.Severity == models.SeverityHigh && !a.Read
}

type Config struct {
	QueueSize  int
	MaxWorkers int
	// SendTimeout bounds a single sink call.
	SendTimeout time.Duration
}

// Service fans alerts out to the configured sinks on a worker pool so the
// store never waits on the network.
type Service struct {
	logger *logging.Logger
	config Config
	sinks  []Sink
	alerts chan models.Alert
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// New constructs a notification Service.
func New(logger *logging.Logger, cfg Config, sinks ...Sink) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 500
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger: logger,
		config: cfg,
		sinks:  sinks,
		alerts: make(chan models.Alert, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels in-flight deliveries and stops the workers.
func (s *Service) Stop() {
	s.cancel()
}

// QueueAlert enqueues an alert for delivery. A full queue drops it.
func (s *Service) QueueAlert(alert models.Alert) {
	if len(s.sinks) == 0 {
		return
	}
	select {
	case s.alerts <- alert:
		s.logger.Debugf("Queued alert: id=%s", alert.ID)
	default:
		s.logger.Errorf("Queue full, dropping alert: id=%s", alert.ID)
	}
}

// worker processes alerts until the context is cancelled.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case alert := <-s.alerts:
			s.handleAlert(alert)
		}
	}
}

// handleAlert runs every accepting sink; one failing sink does not stop
// the others.
func (s *Service) handleAlert(alert models.Alert) {
	log := s.logger.WithField("alert_id", alert.ID)
	for _, sink := range s.sinks {
		if sink.Accept != nil && !sink.Accept(alert) {
			continue
		}
		ctx, cancel := context.WithTimeout(s.ctx, s.config.SendTimeout)
		err := sink.Send(ctx, alert)
		cancel()
		if err != nil {
			log.Errorf("Dispatch error via %s: %v", sink.Name, err)
			continue
		}
		log.Debugf("Dispatched via %s", sink.Name)
	}
}
