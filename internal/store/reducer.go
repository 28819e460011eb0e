package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

const (
	MaxAlerts            = 30
	MaxProductionReports = 20
	MaxRecentTasks       = 15
)

// State is the real-time view shared by every console screen. Lists are
// newest first. A State is never mutated after it is published; every
// change produces new slices.
type State struct {
	Alerts            []models.Alert                 `json:"alerts"`
	LowInventoryItems []models.InventoryItem         `json:"lowInventoryItems"`
	ReadyBatches      []models.ReadyBatch            `json:"readyBatches"`
	ProductionReports []models.ProductionReportEntry `json:"productionReports"`
	RecentTasks       []models.ManagementTask        `json:"recentTasks"`
}

// Empty returns a state with every category present and empty.
func Empty() State {
	return State{
		Alerts:            []models.Alert{},
		LowInventoryItems: []models.InventoryItem{},
		ReadyBatches:      []models.ReadyBatch{},
		ProductionReports: []models.ProductionReportEntry{},
		RecentTasks:       []models.ManagementTask{},
	}
}

// Reducer folds envelopes into State.
type Reducer struct {
	logger *logging.Logger
	now    func() time.Time
	newID  func() string
}

func NewReducer(logger *logging.Logger) *Reducer {
	return &Reducer{
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Reduce returns the state after applying env. It never fails: payloads
// that do not match their schema and types without a policy leave the
// state unchanged.
func (r *Reducer) Reduce(state State, env models.Envelope) State {
	next, _ := r.reduce(state, env)
	return next
}

// reduce also returns the alerts created by env, oldest first.
func (r *Reducer) reduce(state State, env models.Envelope) (State, []models.Alert) {
	log := r.logger.WithField("event_type", env.Type)

	payload, err := env.Payload()
	if err != nil {
		log.Warnf("Ignoring event with invalid payload: %v", err)
		return state, nil
	}

	switch p := payload.(type) {
	case models.Alert:
		alert := r.normalizeAlert(p, env.Type)
		state.Alerts = prepend(state.Alerts, alert, MaxAlerts)
		return state, []models.Alert{alert}

	case models.ReadyBatch:
		if p.ID == "" {
			log.Warnf("Ignoring ready batch without id")
			return state, nil
		}
		state.ReadyBatches = upsert(state.ReadyBatches, p, func(b models.ReadyBatch) models.ID { return b.ID }, 0)
		return state, nil

	case models.ProductionReportEntry:
		if p.ID == "" {
			log.Warnf("Ignoring production report without id")
			return state, nil
		}
		state.ProductionReports = upsert(state.ProductionReports, p, func(r models.ProductionReportEntry) models.ID { return r.ID }, MaxProductionReports)
		return state, nil

	case []models.InventoryItem:
		// snapshot feed: the sender always emits the full list
		state.LowInventoryItems = append([]models.InventoryItem{}, p...)
		return state, nil

	case models.ManagementTask:
		if p.ID == "" {
			log.Warnf("Ignoring task without id")
			return state, nil
		}
		if p.Comments == nil {
			p.Comments = []models.TaskComment{}
		}
		state.RecentTasks = upsert(state.RecentTasks, p, taskID, MaxRecentTasks)
		alert := r.taskAlert(env.Type, p)
		state.Alerts = prepend(state.Alerts, alert, MaxAlerts)
		return state, []models.Alert{alert}

	case models.TaskCommentEvent:
		if p.TaskID == "" || p.Comment == nil {
			log.Warnf("Ignoring comment event without taskId or comment")
			return state, nil
		}
		tasks, ok := appendComment(state.RecentTasks, p.TaskID, *p.Comment)
		if ok {
			state.RecentTasks = tasks
		} else {
			log.Debugf("Comment for unknown task %s not buffered", p.TaskID)
		}
		alert := r.commentAlert(p)
		state.Alerts = prepend(state.Alerts, alert, MaxAlerts)
		return state, []models.Alert{alert}

	case models.TaskDeadline:
		alert := r.deadlineAlert(p)
		state.Alerts = prepend(state.Alerts, alert, MaxAlerts)
		return state, []models.Alert{alert}

	default:
		log.Debugf("No real-time state policy for event")
		return state, nil
	}
}

func (r *Reducer) normalizeAlert(a models.Alert, t models.EventType) models.Alert {
	if a.ID == "" {
		a.ID = models.ID(r.newID())
	}
	if a.Type == "" {
		a.Type = string(t)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = models.At(r.now())
	}
	if a.Severity == "" {
		a.Severity = models.SeverityMedium
		if t == models.EmergencyAlert {
			a.Severity = models.SeverityHigh
		}
	}
	return a
}

func (r *Reducer) taskAlert(t models.EventType, task models.ManagementTask) models.Alert {
	var title, message string
	switch t {
	case models.TaskAssigned:
		title = "New Task Assigned"
		message = fmt.Sprintf("Task %q has been assigned", task.Title)
	case models.TaskStatusChanged:
		title = "Task Status Changed"
		message = fmt.Sprintf("Task %q is now %s", task.Title, task.Status)
	default:
		title = "Task Updated"
		message = fmt.Sprintf("Task %q was updated", task.Title)
	}
	return models.Alert{
		ID:        models.ID(r.newID()),
		Type:      "task",
		Title:     title,
		Message:   message,
		Timestamp: models.At(r.now()),
		Severity:  severityFor(task.Priority),
		TaskID:    task.ID,
	}
}

func (r *Reducer) commentAlert(c models.TaskCommentEvent) models.Alert {
	author := c.Comment.Author
	if author == "" {
		author = "Someone"
	}
	return models.Alert{
		ID:        models.ID(r.newID()),
		Type:      "task_comment",
		Title:     "New Task Comment",
		Message:   fmt.Sprintf("%s commented on task %s", author, c.TaskID),
		Timestamp: models.At(r.now()),
		Severity:  models.SeverityLow,
		TaskID:    c.TaskID,
	}
}

func (r *Reducer) deadlineAlert(d models.TaskDeadline) models.Alert {
	message := fmt.Sprintf("Task %q is approaching its deadline", d.Title)
	if d.Deadline.Set() {
		message = fmt.Sprintf("Task %q is due %s", d.Title, d.Deadline.Format("2006-01-02 15:04"))
	}
	return models.Alert{
		ID:        models.ID(r.newID()),
		Type:      "task_deadline",
		Title:     "Task Deadline Approaching",
		Message:   message,
		Timestamp: models.At(r.now()),
		Severity:  models.SeverityMedium,
		TaskID:    d.TaskID,
	}
}

func severityFor(p models.TaskPriority) models.Severity {
	switch p {
	case models.PriorityUrgent:
		return models.SeverityHigh
	case models.PriorityHigh:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func taskID(t models.ManagementTask) models.ID { return t.ID }

// prepend puts item first and keeps at most limit entries.
func prepend[T any](list []T, item T, limit int) []T {
	n := len(list) + 1
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]T, 0, n)
	out = append(out, item)
	return append(out, list[:n-1]...)
}

// upsert replaces the entry sharing item's id in place, or inserts item
// first. Only insertions drop the oldest entries beyond limit.
func upsert[T any](list []T, item T, id func(T) models.ID, limit int) []T {
	key := id(item)
	for i := range list {
		if id(list[i]) == key {
			out := make([]T, len(list))
			copy(out, list)
			out[i] = item
			return out
		}
	}
	return prepend(list, item, limit)
}

// appendComment copies the task list with comment appended to taskID.
func appendComment(tasks []models.ManagementTask, id models.ID, comment models.TaskComment) ([]models.ManagementTask, bool) {
	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		out := make([]models.ManagementTask, len(tasks))
		copy(out, tasks)
		comments := make([]models.TaskComment, 0, len(tasks[i].Comments)+1)
		comments = append(comments, tasks[i].Comments...)
		if comment.TaskID == "" {
			comment.TaskID = id
		}
		out[i].Comments = append(comments, comment)
		return out, true
	}
	return tasks, false
}
