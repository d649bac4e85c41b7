package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"miniappbot/pkg/logger"
	"miniappbot/pkg/payload"
)

type State int32

const (
	StateIdle State = iota
	StateClassifying
	StateHandling
	StateEmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClassifying:
		return "classifying"
	case StateHandling:
		return "handling"
	case StateEmitting:
		return "emitting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats counts what the dispatcher has done since it was created.
type Stats struct {
	Events            uint64 `json:"events"`
	ActionsDelivered  uint64 `json:"actions_delivered"`
	MalformedPayloads uint64 `json:"malformed_payloads"`
	HandlerFailures   uint64 `json:"handler_failures"`
	DeliveryFailures  uint64 `json:"delivery_failures"`
	LastIncidentID    string `json:"last_incident_id,omitempty"`
}

// Dispatcher handles one event at a time: route, run the handler, deliver the
// resulting actions. Handler errors never escape as a crash; the user always
// gets a reply in the chat the event came from.
type Dispatcher struct {
	router    *Router
	transport Transport
	state     atomic.Int32

	events            atomic.Uint64
	actionsDelivered  atomic.Uint64
	malformedPayloads atomic.Uint64
	handlerFailures   atomic.Uint64
	deliveryFailures  atomic.Uint64

	incidentMu     sync.Mutex
	lastIncidentID string
}

func NewDispatcher(router *Router, transport Transport) *Dispatcher {
	return &Dispatcher{router: router, transport: transport}
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) Stats() Stats {
	d.incidentMu.Lock()
	incident := d.lastIncidentID
	d.incidentMu.Unlock()

	return Stats{
		Events:            d.events.Load(),
		ActionsDelivered:  d.actionsDelivered.Load(),
		MalformedPayloads: d.malformedPayloads.Load(),
		HandlerFailures:   d.handlerFailures.Load(),
		DeliveryFailures:  d.deliveryFailures.Load(),
		LastIncidentID:    incident,
	}
}

// Dispatch handles ev and delivers its actions. The returned error reports
// routing defects and delivery failures; handler failures are answered in
// chat and only recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.events.Add(1)
	defer d.setState(StateIdle)

	d.setState(StateClassifying)
	handler, err := d.router.Route(ev)
	if err != nil {
		logger.ErrorCF("dispatcher", "No handler for event", map[string]interface{}{
			logger.FieldEventKind: fmt.Sprintf("%T", ev),
			logger.FieldError:     err.Error(),
		})
		return err
	}

	d.setState(StateHandling)
	actions := d.runHandler(handler, ev)

	d.setState(StateEmitting)
	return d.emit(ctx, ev, actions)
}

func (d *Dispatcher) runHandler(handler Handler, ev Event) []Action {
	actions, err := safeCall(handler, ev)
	if err == nil {
		return actions
	}

	notice := d.noticeFor(ev, err)
	// a failed callback still clears the client's loading indicator
	if q, ok := ev.(CallbackQuery); ok {
		return []Action{AnswerCallback{CallbackID: q.ID}, notice}
	}
	return []Action{notice}
}

func (d *Dispatcher) noticeFor(ev Event, err error) SendText {
	o := OriginOf(ev)
	if errors.Is(err, payload.ErrMalformed) {
		d.malformedPayloads.Add(1)
		logger.WarnCF("dispatcher", "Malformed mini app payload", map[string]interface{}{
			logger.FieldChatID: o.ChatID,
			logger.FieldUserID: o.UserID,
			logger.FieldError:  err.Error(),
		})
		return SendText{ChatID: o.ChatID, Text: malformedNotice}
	}

	incident := uuid.NewString()
	d.handlerFailures.Add(1)
	d.incidentMu.Lock()
	d.lastIncidentID = incident
	d.incidentMu.Unlock()

	logger.ErrorCF("dispatcher", "Handler failed", map[string]interface{}{
		logger.FieldIncidentID: incident,
		logger.FieldEventKind:  eventKind(ev),
		logger.FieldChatID:     o.ChatID,
		logger.FieldUserID:     o.UserID,
		logger.FieldError:      err.Error(),
	})
	return SendText{ChatID: o.ChatID, Text: failureNotice}
}

func (d *Dispatcher) emit(ctx context.Context, ev Event, actions []Action) error {
	var errs []error
	for i, a := range actions {
		if err := deliver(ctx, d.transport, a); err != nil {
			d.deliveryFailures.Add(1)
			logger.ErrorCF("dispatcher", "Action delivery failed", map[string]interface{}{
				logger.FieldAction:    a.actionName(),
				logger.FieldEventKind: eventKind(ev),
				logger.FieldChatID:    OriginOf(ev).ChatID,
				"index":               i,
				logger.FieldError:     err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", a.actionName(), err))
			continue
		}
		d.actionsDelivered.Add(1)
	}

	logger.DebugCF("dispatcher", "Event handled", map[string]interface{}{
		logger.FieldEventKind:   eventKind(ev),
		logger.FieldActionCount: len(actions),
	})
	return errors.Join(errs...)
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}

func safeCall(handler Handler, ev Event) (actions []Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			actions = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ev)
}
