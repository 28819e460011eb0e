package store

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

var fixedNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	s := New(logging.NewNop())
	n := 0
	s.reducer.now = func() time.Time { return fixedNow }
	s.reducer.newID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	return s
}

func env(t models.EventType, data string) models.Envelope {
	return models.Envelope{Type: t, Data: json.RawMessage(data)}
}

func TestAlertsAreCappedNewestFirst(t *testing.T) {
	s := newTestStore()
	for i := 1; i <= 35; i++ {
		s.Apply(env(models.EmergencyAlert, fmt.Sprintf(`{"id":"a%d","title":"Alert %d","severity":"high"}`, i, i)))
	}

	alerts := s.Snapshot().Alerts
	require.Len(t, alerts, MaxAlerts)
	for i, a := range alerts {
		assert.Equal(t, models.ID(fmt.Sprintf("a%d", 35-i)), a.ID)
	}
}

func TestAlertsAreAlwaysPrepended(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.InventoryAlert, `{"id":"x","title":"Feed low"}`))
	s.Apply(env(models.InventoryAlert, `{"id":"x","title":"Feed low again"}`))

	alerts := s.Snapshot().Alerts
	require.Len(t, alerts, 2)
	assert.Equal(t, "Feed low again", alerts[0].Title)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
	assert.Equal(t, "inventory_alert", alerts[0].Type)
	assert.Equal(t, fixedNow, alerts[0].Timestamp.Time)
}

func TestReadyBatchUpsertInPlace(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b1","count":5}`))
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b2","count":7}`))
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b1","count":9}`))

	batches := s.Snapshot().ReadyBatches
	require.Len(t, batches, 2)
	assert.Equal(t, models.ID("b2"), batches[0].ID)
	assert.Equal(t, models.ID("b1"), batches[1].ID)
	assert.Equal(t, 9, batches[1].Count)
}

func TestProductionReportsCapOnlyOnInsert(t *testing.T) {
	s := newTestStore()
	for i := 1; i <= 25; i++ {
		s.Apply(env(models.ProductionReport, fmt.Sprintf(`{"id":"r%d","birdsCount":%d}`, i, i)))
	}
	reports := s.Snapshot().ProductionReports
	require.Len(t, reports, MaxProductionReports)
	assert.Equal(t, models.ID("r25"), reports[0].ID)
	assert.Equal(t, models.ID("r6"), reports[19].ID)

	s.Apply(env(models.ProductionReport, `{"id":"r6","birdsCount":600}`))
	reports = s.Snapshot().ProductionReports
	require.Len(t, reports, MaxProductionReports)
	assert.Equal(t, models.ID("r6"), reports[19].ID)
	assert.Equal(t, 600, reports[19].BirdsCount)
}

func TestLowInventoryIsSnapshotReplaced(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.LowInventoryUpdate, `[{"id":"A","name":"Corn","quantity":1}]`))
	s.Apply(env(models.LowInventoryUpdate, `[{"id":"B","name":"Soy","quantity":2},{"id":"C","name":"Vitamins","quantity":0}]`))

	items := s.Snapshot().LowInventoryItems
	require.Len(t, items, 2)
	assert.Equal(t, models.ID("B"), items[0].ID)
	assert.Equal(t, models.ID("C"), items[1].ID)

	// a non-list payload is ignored
	s.Apply(env(models.LowInventoryUpdate, `{"id":"D"}`))
	assert.Len(t, s.Snapshot().LowInventoryItems, 2)
}

func TestUrgentTaskProducesHighAlert(t *testing.T) {
	s := newTestStore()
	var notified []models.Alert
	s.OnAlert(func(a models.Alert) { notified = append(notified, a) })

	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Vaccinate house 3","priority":"urgent","status":"pending"}`))

	state := s.Snapshot()
	require.Len(t, state.RecentTasks, 1)
	require.Len(t, state.Alerts, 1)
	assert.Equal(t, models.SeverityHigh, state.Alerts[0].Severity)
	assert.Equal(t, "New Task Assigned", state.Alerts[0].Title)
	assert.Equal(t, models.ID("t1"), state.Alerts[0].TaskID)
	assert.Equal(t, []models.TaskComment{}, state.RecentTasks[0].Comments)
	require.Len(t, notified, 1)
	assert.Equal(t, state.Alerts[0], notified[0])
}

func TestTaskAlertSeverityAndTitles(t *testing.T) {
	tests := []struct {
		typ      models.EventType
		priority string
		severity models.Severity
		title    string
	}{
		{models.TaskAssigned, "urgent", models.SeverityHigh, "New Task Assigned"},
		{models.TaskUpdated, "high", models.SeverityMedium, "Task Updated"},
		{models.TaskStatusChanged, "medium", models.SeverityLow, "Task Status Changed"},
		{models.TaskStatusChanged, "", models.SeverityLow, "Task Status Changed"},
	}
	for _, tt := range tests {
		s := newTestStore()
		s.Apply(env(tt.typ, fmt.Sprintf(`{"id":"t1","title":"Clean","priority":%q,"status":"in_progress"}`, tt.priority)))
		alerts := s.Snapshot().Alerts
		require.Len(t, alerts, 1)
		assert.Equal(t, tt.severity, alerts[0].Severity, tt.typ)
		assert.Equal(t, tt.title, alerts[0].Title, tt.typ)
	}
}

func TestRecentTasksUpsertAndCap(t *testing.T) {
	s := newTestStore()
	for i := 1; i <= 16; i++ {
		s.Apply(env(models.TaskUpdated, fmt.Sprintf(`{"id":"t%d","title":"Task %d","status":"pending"}`, i, i)))
	}
	tasks := s.Snapshot().RecentTasks
	require.Len(t, tasks, MaxRecentTasks)
	assert.Equal(t, models.ID("t16"), tasks[0].ID)
	assert.Equal(t, models.ID("t2"), tasks[14].ID)

	s.Apply(env(models.TaskStatusChanged, `{"id":"t2","title":"Task 2","status":"completed"}`))
	tasks = s.Snapshot().RecentTasks
	require.Len(t, tasks, MaxRecentTasks)
	assert.Equal(t, models.TaskDone, tasks[14].Status)
}

func TestCommentForUnknownTask(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Feed","status":"pending"}`))
	before := s.Snapshot().RecentTasks

	assert.NotPanics(t, func() {
		s.Apply(env(models.TaskCommentAdded, `{"taskId":"missing","comment":{"id":"c1","content":"hi"}}`))
	})
	assert.Equal(t, before, s.Snapshot().RecentTasks)
}

func TestCommentAppendsToKnownTask(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Feed","status":"pending"}`))
	first := s.Snapshot()

	s.Apply(env(models.TaskCommentAdded, `{"taskId":"t1","comment":{"id":"c1","author":"Lan","content":"done half"}}`))
	s.Apply(env(models.TaskCommentAdded, `{"taskId":"t1","comment":{"id":"c2","content":"done"}}`))

	state := s.Snapshot()
	comments := state.RecentTasks[0].Comments
	require.Len(t, comments, 2)
	assert.Equal(t, "done half", comments[0].Content)
	assert.Equal(t, models.ID("t1"), comments[1].TaskID)
	assert.Equal(t, models.SeverityLow, state.Alerts[0].Severity)
	assert.Equal(t, "Someone commented on task t1", state.Alerts[0].Message)

	// published snapshots are not mutated
	assert.Empty(t, first.RecentTasks[0].Comments)

	// missing fields leave state untouched
	s.Apply(env(models.TaskCommentAdded, `{"taskId":"t1"}`))
	assert.Len(t, s.Snapshot().Alerts, len(state.Alerts))
}

func TestDeadlineAlertDoesNotTouchTasks(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskDeadlineApproaching, `{"taskId":"t9","title":"Weigh flock","deadline":"2024-05-02T10:00:00Z"}`))

	state := s.Snapshot()
	assert.Empty(t, state.RecentTasks)
	require.Len(t, state.Alerts, 1)
	assert.Equal(t, models.SeverityMedium, state.Alerts[0].Severity)
	assert.Equal(t, `Task "Weigh flock" is due 2024-05-02 10:00`, state.Alerts[0].Message)
}

func TestUnknownAndInvalidEventsLeaveStateUnchanged(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b1"}`))
	before := s.Snapshot()

	s.Apply(env("something_new", `{"id":"z"}`))
	s.Apply(env(models.BatchCreated, `{"id":"b5"}`))
	s.Apply(env(models.ReadyForSlaughter, `"not an object"`))
	s.Apply(env(models.ReadyForSlaughter, `{"count":3}`))

	assert.Equal(t, before, s.Snapshot())
}

func TestMarkAlertAsRead(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.EmergencyAlert, `{"id":"a1","title":"Fire"}`))
	s.Apply(env(models.EmergencyAlert, `{"id":"a2","title":"Flood"}`))

	var changed []models.Alert
	s.OnAlert(func(a models.Alert) { changed = append(changed, a) })

	assert.True(t, s.MarkAlertAsRead("a1"))
	assert.False(t, s.MarkAlertAsRead("nope"))

	alerts := s.Snapshot().Alerts
	assert.False(t, alerts[0].Read)
	assert.True(t, alerts[1].Read)
	require.Len(t, changed, 1)
	assert.Equal(t, models.ID("a1"), changed[0].ID)
}

func TestProcessBatch(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b1"}`))
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b2"}`))

	assert.True(t, s.ProcessBatch("b1"))
	assert.False(t, s.ProcessBatch("b1"))
	batches := s.Snapshot().ReadyBatches
	require.Len(t, batches, 1)
	assert.Equal(t, models.ID("b2"), batches[0].ID)
}

func TestUpdateTaskStatus(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Feed","status":"pending"}`))

	require.True(t, s.UpdateTaskStatus("t1", models.TaskInProgress))
	task := s.Snapshot().RecentTasks[0]
	assert.Equal(t, models.TaskInProgress, task.Status)
	require.NotNil(t, task.UpdatedAt)
	assert.Nil(t, task.CompletedAt)

	require.True(t, s.UpdateTaskStatus("t1", models.TaskDone))
	task = s.Snapshot().RecentTasks[0]
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, fixedNow, task.CompletedAt.Time)

	assert.False(t, s.UpdateTaskStatus("t404", models.TaskDone))
}

func TestAddTaskCommentLocally(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Feed","status":"pending"}`))
	alerts := len(s.Snapshot().Alerts)

	assert.True(t, s.AddTaskComment("t1", models.TaskComment{ID: "c1", Content: "on it"}))
	assert.False(t, s.AddTaskComment("t2", models.TaskComment{ID: "c2", Content: "lost"}))

	state := s.Snapshot()
	require.Len(t, state.RecentTasks[0].Comments, 1)
	assert.Len(t, state.Alerts, alerts)
}

func TestSyncTasksAndClear(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Feed","status":"pending"}`))
	s.Apply(env(models.ReadyForSlaughter, `{"id":"b1"}`))

	s.SyncTasks([]models.ManagementTask{{ID: "t7", Title: "Synced", Status: models.TaskPending}})
	tasks := s.Snapshot().RecentTasks
	require.Len(t, tasks, 1)
	assert.Equal(t, models.ID("t7"), tasks[0].ID)
	assert.NotNil(t, tasks[0].Comments)

	s.ClearRealTimeData()
	assert.Equal(t, Empty(), s.Snapshot())
}

func TestReduceIsPure(t *testing.T) {
	r := NewReducer(logging.NewNop())
	start := Empty()
	next := r.Reduce(start, env(models.ReadyForSlaughter, `{"id":"b1"}`))

	assert.Empty(t, start.ReadyBatches)
	assert.Len(t, next.ReadyBatches, 1)
}

func TestLooselyTypedFieldsKeepTheEvent(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskAssigned, `{"id":"t1","title":"Vaccinate","priority":"urgent","deadline":"2024-05-01"}`))
	s.Apply(env(models.EmergencyAlert, `{"id":"a1","title":"Heat","timestamp":1714550400000}`))
	s.Apply(env(models.TaskUpdated, `{"id":"t2","title":"Weigh","completionPercentage":42.5,"createdAt":"yesterday-ish"}`))
	s.Apply(env(models.ReadyForSlaughter, `{"id":"rb1","count":"lots","breed":"Ross 308"}`))

	state := s.Snapshot()
	require.Len(t, state.RecentTasks, 2)
	require.Len(t, state.Alerts, 3)
	require.Len(t, state.ReadyBatches, 1)

	weigh, vaccinate := state.RecentTasks[0], state.RecentTasks[1]
	assert.Equal(t, 42.5, weigh.CompletionPercentage)
	assert.False(t, weigh.CreatedAt.Set())
	require.True(t, vaccinate.Deadline.Set())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), vaccinate.Deadline.Time)

	// newest first: task_updated alert, emergency alert, task_assigned alert
	assert.Equal(t, models.SeverityHigh, state.Alerts[2].Severity)
	assert.Equal(t, "New Task Assigned", state.Alerts[2].Title)
	assert.Equal(t, models.ID("a1"), state.Alerts[1].ID)
	assert.Equal(t, time.UnixMilli(1714550400000).UTC(), state.Alerts[1].Timestamp.Time)

	assert.Equal(t, "Ross 308", state.ReadyBatches[0].Breed)
	assert.Zero(t, state.ReadyBatches[0].Count)
}

func TestDeadlineWithDateOnly(t *testing.T) {
	s := newTestStore()
	s.Apply(env(models.TaskDeadlineApproaching, `{"taskId":"t9","title":"Weigh flock","deadline":"2024-05-02"}`))
	s.Apply(env(models.TaskDeadlineApproaching, `{"taskId":"t9","title":"Weigh flock","deadline":"soon"}`))

	alerts := s.Snapshot().Alerts
	require.Len(t, alerts, 2)
	assert.Equal(t, `Task "Weigh flock" is approaching its deadline`, alerts[0].Message)
	assert.Equal(t, `Task "Weigh flock" is due 2024-05-02 00:00`, alerts[1].Message)
}
