package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

func envelope(t models.EventType, data string) models.Envelope {
	return models.Envelope{Type: t, Data: json.RawMessage(data)}
}

func TestDispatchIsolatesFailingHandlers(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(nil, logging.NewWriter(&buf))

	var calls []string
	h1 := NewHandler(func(models.Envelope) error {
		calls = append(calls, "h1")
		panic("boom")
	})
	h2 := NewHandler(func(models.Envelope) error {
		calls = append(calls, "h2")
		return errors.New("soft failure")
	})
	h3 := NewHandler(func(models.Envelope) error {
		calls = append(calls, "h3")
		return nil
	})
	router.Registry().On(models.EmergencyAlert, h1)
	router.Registry().On(models.EmergencyAlert, h2)
	router.Registry().On(models.EmergencyAlert, h3)

	router.Dispatch(envelope(models.EmergencyAlert, `{"id":"a1"}`))
	router.Dispatch(envelope(models.EmergencyAlert, `{"id":"a2"}`))

	assert.Equal(t, []string{"h1", "h2", "h3", "h1", "h2", "h3"}, calls)
	assert.Contains(t, buf.String(), "event_type=emergency_alert")
	assert.Contains(t, buf.String(), "boom")
}

func TestDispatchRoutesOnlyMatchingType(t *testing.T) {
	router := NewRouter(nil, logging.NewNop())

	var gotT, gotU int
	router.Registry().On(models.TaskAssigned, NewHandler(func(models.Envelope) error { gotT++; return nil }))
	router.Registry().On(models.TaskUpdated, NewHandler(func(models.Envelope) error { gotU++; return nil }))

	router.Dispatch(envelope(models.TaskAssigned, `{}`))
	router.Dispatch(envelope("unregistered_type", `{}`))

	assert.Equal(t, 1, gotT)
	assert.Equal(t, 0, gotU)
}

func TestDuplicateRegistrationAndOff(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg, logging.NewNop())

	count := 0
	h := NewHandler(func(models.Envelope) error { count++; return nil })
	other := NewHandler(func(models.Envelope) error { return nil })

	reg.On(models.BatchCreated, h)
	reg.On(models.BatchCreated, h)
	reg.On(models.BatchCreated, other)
	router.Dispatch(envelope(models.BatchCreated, `{}`))
	assert.Equal(t, 2, count)

	reg.Off(models.BatchCreated, h)
	assert.Equal(t, 1, reg.Count(models.BatchCreated))
	router.Dispatch(envelope(models.BatchCreated, `{}`))
	assert.Equal(t, 2, count)

	// removing something never registered is a no-op
	reg.Off(models.BatchUpdated, h)
	reg.Off(models.BatchCreated, h)
	assert.Equal(t, 1, reg.Count(models.BatchCreated))
}

func TestHandlersMayUnregisterDuringDispatch(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg, logging.NewNop())

	var order []string
	var self Handler
	self = NewHandler(func(models.Envelope) error {
		order = append(order, "once")
		reg.Off(models.Ping, self)
		return nil
	})
	late := NewHandler(func(models.Envelope) error {
		order = append(order, "late")
		return nil
	})
	reg.On(models.Ping, self)
	reg.On(models.Ping, NewHandler(func(models.Envelope) error {
		order = append(order, "adder")
		reg.On(models.Ping, late)
		return nil
	}))

	router.Dispatch(envelope(models.Ping, `{}`))
	require.Equal(t, []string{"once", "adder"}, order)

	order = nil
	router.Dispatch(envelope(models.Ping, `{}`))
	assert.Equal(t, []string{"adder", "late"}, order)
}

type recordingObserver struct {
	seen []models.EventType
}

func (o *recordingObserver) Observe(env models.Envelope) {
	o.seen = append(o.seen, env.Type)
}

func TestObserversSeeEveryEnvelopeFirst(t *testing.T) {
	router := NewRouter(nil, logging.NewNop())
	obs := &recordingObserver{}
	router.Observe(obs)

	var afterObserver bool
	router.Registry().On(models.TaskAssigned, NewHandler(func(models.Envelope) error {
		afterObserver = len(obs.seen) == 1
		return nil
	}))

	router.Dispatch(envelope(models.TaskAssigned, `{}`))
	router.Dispatch(envelope("future_type", `{}`))

	assert.True(t, afterObserver)
	assert.Equal(t, []models.EventType{models.TaskAssigned, "future_type"}, obs.seen)
}

// HandlerFunc-style adapter: func types cannot be compared.
type handlerFunc func(models.Envelope) error

func (f handlerFunc) HandleEvent(env models.Envelope) error { return f(env) }

// a struct value holding a slice is not comparable either
type batchHandler struct {
	seen []models.ID
}

func (b batchHandler) HandleEvent(models.Envelope) error { return nil }

func TestUncomparableHandlersNeverPanic(t *testing.T) {
	reg := NewRegistry()
	fn := handlerFunc(func(models.Envelope) error { return nil })
	kept := NewHandler(func(models.Envelope) error { return nil })

	assert.NotPanics(t, func() {
		reg.On(models.Ping, kept)
		reg.On(models.Ping, fn)
		reg.On(models.Ping, batchHandler{})
		reg.Off(models.Ping, fn)
		reg.Off(models.Ping, batchHandler{seen: []models.ID{"b1"}})
	})
	assert.Equal(t, 1, reg.Count(models.Ping))
}

func TestDispatchLogsUnknownTypes(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(nil, logging.NewWriter(&buf))

	router.Dispatch(envelope(models.SystemMaintenance, `{}`))
	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), "No handlers for event type system_maintenance")

	buf.Reset()
	router.Dispatch(envelope("brand_new_event", `{}`))
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "Unknown event type brand_new_event")
}
