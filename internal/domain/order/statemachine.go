package order

import (
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/domainerr"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no action leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionProcess  Action = "process"
	ActionShip     Action = "ship"
	ActionDeliver  Action = "deliver"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Effect is a side effect the workflow must run as part of a transition.
type Effect uint16

const (
	EffectReserveStock Effect = 1 << iota
	EffectReleaseStock
	EffectCreateCommission
	EffectCreateInvoice
	EffectNotifyConfirmation
	EffectNotifyProcessing
	EffectNotifyShipping
	EffectCancelCommission
)

func (e Effect) Has(flag Effect) bool {
	return e&flag != 0
}

// Notification template keys.
const (
	TemplateConfirmation = "order_confirmation"
	TemplateProcessing   = "order_processing"
	TemplateShipped      = "order_shipped"
)

type Transition struct {
	From    Status
	Action  Action
	To      Status
	Effects Effect
}

// Templates returns the notification templates the transition sends.
func (t Transition) Templates() []string {
	var keys []string
	if t.Effects.Has(EffectNotifyConfirmation) {
		keys = append(keys, TemplateConfirmation)
	}
	if t.Effects.Has(EffectNotifyProcessing) {
		keys = append(keys, TemplateProcessing)
	}
	if t.Effects.Has(EffectNotifyShipping) {
		keys = append(keys, TemplateShipped)
	}
	return keys
}

var ErrInvalidTransition = errors.Wrap(domainerr.ErrInvalidTransition, "order")

// table is the complete lifecycle. Any (state, action) pair not listed is rejected.
var table = []Transition{
	{StatusDraft, ActionConfirm, StatusConfirmed, EffectReserveStock | EffectCreateCommission | EffectNotifyConfirmation},
	{StatusConfirmed, ActionProcess, StatusProcessing, EffectNotifyProcessing},
	{StatusConfirmed, ActionShip, StatusShipped, EffectNotifyShipping},
	{StatusProcessing, ActionShip, StatusShipped, EffectNotifyShipping},
	{StatusShipped, ActionDeliver, StatusDelivered, 0},
	{StatusDelivered, ActionComplete, StatusDone, EffectCreateInvoice},
	{StatusDraft, ActionCancel, StatusCancelled, 0},
	{StatusConfirmed, ActionCancel, StatusCancelled, EffectReleaseStock | EffectCancelCommission},
	{StatusProcessing, ActionCancel, StatusCancelled, EffectReleaseStock | EffectCancelCommission},
	{StatusShipped, ActionCancel, StatusCancelled, EffectCancelCommission},
	{StatusDelivered, ActionCancel, StatusCancelled, EffectCancelCommission},
}

var transitions = func() map[Status]map[Action]Transition {
	m := make(map[Status]map[Action]Transition)
	for _, t := range table {
		if m[t.From] == nil {
			m[t.From] = make(map[Action]Transition)
		}
		m[t.From][t.Action] = t
	}
	return m
}()

// Next looks up the transition for action from the given state.
func Next(from Status, action Action) (Transition, error) {
	t, ok := transitions[from][action]
	if !ok {
		return Transition{}, errors.Wrapf(ErrInvalidTransition, "cannot %s an order in state %s", action, from)
	}
	return t, nil
}

// AllowedActions lists the actions available from a state, in lifecycle order.
func AllowedActions(from Status) []Action {
	var actions []Action
	for _, t := range table {
		if t.From == from {
			actions = append(actions, t.Action)
		}
	}
	return actions
}
