package store

import (
	"sync"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

// Store holds the process-wide real-time state. Envelopes are applied in
// the order the router delivers them; UI-initiated operations go through
// the same lock.
type Store struct {
	mu        sync.RWMutex
	state     State
	reducer   *Reducer
	logger    *logging.Logger
	listeners []func(models.Alert)
}

func New(logger *logging.Logger) *Store {
	return &Store{
		state:   Empty(),
		reducer: NewReducer(logger),
		logger:  logger,
	}
}

// OnAlert registers fn to run after an alert is created or marked read.
// Listeners run outside the store lock, in creation order.
func (s *Store) OnAlert(fn func(models.Alert)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Observe lets the store sit on the router as an observer.
func (s *Store) Observe(env models.Envelope) {
	s.Apply(env)
}

// Apply folds env into the state.
func (s *Store) Apply(env models.Envelope) {
	s.mu.Lock()
	next, created := s.reducer.reduce(s.state, env)
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, created)
}

// Snapshot returns the current state. The returned slices must not be
// modified.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// MarkAlertAsRead flags the alert with the given id. It reports whether
// the alert exists.
func (s *Store) MarkAlertAsRead(id models.ID) bool {
	s.mu.Lock()
	idx := -1
	for i, a := range s.state.Alerts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	alerts := make([]models.Alert, len(s.state.Alerts))
	copy(alerts, s.state.Alerts)
	alerts[idx].Read = true
	s.state.Alerts = alerts
	changed := alerts[idx]
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, []models.Alert{changed})
	return true
}

// ProcessBatch removes a ready batch once it has been handled.
func (s *Store) ProcessBatch(id models.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReadyBatch, 0, len(s.state.ReadyBatches))
	for _, b := range s.state.ReadyBatches {
		if b.ID != id {
			out = append(out, b)
		}
	}
	if len(out) == len(s.state.ReadyBatches) {
		return false
	}
	s.state.ReadyBatches = out
	return true
}

// UpdateTaskStatus sets the status and updatedAt of a recent task, and
// completedAt when the task becomes completed.
func (s *Store) UpdateTaskStatus(id models.ID, status models.TaskStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.RecentTasks {
		if s.state.RecentTasks[i].ID != id {
			continue
		}
		now := models.At(s.reducer.now())
		tasks := make([]models.ManagementTask, len(s.state.RecentTasks))
		copy(tasks, s.state.RecentTasks)
		tasks[i].Status = status
		tasks[i].UpdatedAt = now.Ptr()
		if status == models.TaskDone {
			tasks[i].CompletedAt = now.Ptr()
		}
		s.state.RecentTasks = tasks
		return true
	}
	return false
}

// AddTaskComment appends a locally written comment ahead of the server
// echo. Comments for tasks not in the recent list are dropped.
func (s *Store) AddTaskComment(id models.ID, comment models.TaskComment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, ok := appendComment(s.state.RecentTasks, id, comment)
	if !ok {
		s.logger.Debugf("Comment for unknown task %s dropped", id)
		return false
	}
	s.state.RecentTasks = tasks
	return true
}

// SyncTasks replaces the recent tasks after a full refresh.
func (s *Store) SyncTasks(tasks []models.ManagementTask) {
	out := make([]models.ManagementTask, len(tasks))
	copy(out, tasks)
	for i := range out {
		if out[i].Comments == nil {
			out[i].Comments = []models.TaskComment{}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RecentTasks = out
}

// ClearRealTimeData empties every category.
func (s *Store) ClearRealTimeData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Empty()
}

func (s *Store) notify(listeners []func(models.Alert), alerts []models.Alert) {
	for _, a := range alerts {
		for _, fn := range listeners {
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						s.logger.Errorf("Alert listener panicked: %v", rec)
					}
				}()
				fn(a)
			}()
		}
	}
}
