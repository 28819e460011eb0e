package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-console/internal/models"
)

type fakeArchive struct {
	alerts map[models.ID]models.Alert
	marked []models.ID
}

func (f *fakeArchive) CreateAlert(_ context.Context, a models.Alert) error {
	f.alerts[a.ID] = a
	return nil
}

func (f *fakeArchive) MarkAlertRead(_ context.Context, id models.ID) (bool, error) {
	a, ok := f.alerts[id]
	if !ok {
		return false, nil
	}
	f.marked = append(f.marked, id)
	a.Read = true
	f.alerts[id] = a
	return true, nil
}

func TestArchiveSinkMarksReadAlerts(t *testing.T) {
	archive := &fakeArchive{alerts: map[models.ID]models.Alert{}}
	sink := archiveSink(archive)
	ctx := context.Background()

	require.NoError(t, sink.Send(ctx, models.Alert{ID: "a1", Title: "Heat stress"}))
	require.NoError(t, sink.Send(ctx, models.Alert{ID: "a1", Title: "Heat stress", Read: true}))
	assert.Equal(t, []models.ID{"a1"}, archive.marked)
	assert.True(t, archive.alerts["a1"].Read)

	// read before it was ever archived: stored whole
	require.NoError(t, sink.Send(ctx, models.Alert{ID: "a2", Title: "Feed low", Read: true}))
	assert.Equal(t, []models.ID{"a1"}, archive.marked)
	assert.True(t, archive.alerts["a2"].Read)
}
