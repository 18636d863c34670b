package orders

import (
	"fmt"

	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

// Action is a transition a customer can request.
type Action string

const (
	ActionCancel        Action = "cancel"
	ActionRequestReturn Action = "request_return"
)

type edge struct {
	from, to enums.OrderStatus
}

var transitions = map[edge][]enums.Actor{
	{enums.OrderStatusPending, enums.OrderStatusConfirmed}:         {enums.ActorBackend},
	{enums.OrderStatusConfirmed, enums.OrderStatusProcessing}:      {enums.ActorBackend},
	{enums.OrderStatusProcessing, enums.OrderStatusPacked}:         {enums.ActorBackend},
	{enums.OrderStatusPacked, enums.OrderStatusShipped}:            {enums.ActorBackend},
	{enums.OrderStatusShipped, enums.OrderStatusOutForDelivery}:    {enums.ActorAgent, enums.ActorBackend},
	{enums.OrderStatusShipped, enums.OrderStatusDelivered}:         {enums.ActorAgent, enums.ActorBackend},
	{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered}:  {enums.ActorAgent, enums.ActorBackend},
	{enums.OrderStatusPending, enums.OrderStatusCancelled}:         {enums.ActorCustomer, enums.ActorBackend},
	{enums.OrderStatusConfirmed, enums.OrderStatusCancelled}:       {enums.ActorCustomer, enums.ActorBackend},
	{enums.OrderStatusProcessing, enums.OrderStatusCancelled}:      {enums.ActorCustomer, enums.ActorBackend},
	{enums.OrderStatusDelivered, enums.OrderStatusReturnRequested}: {enums.ActorCustomer},
}

// CanTransition reports whether actor may move an order from one status to another.
func CanTransition(from, to enums.OrderStatus, actor enums.Actor) bool {
	for _, allowed := range transitions[edge{from, to}] {
		if allowed == actor {
			return true
		}
	}
	return false
}

// CanCancel combines the local guard with the server's can_be_cancelled hint.
func (o Order) CanCancel() bool {
	if o.CanBeCancelled != nil && !*o.CanBeCancelled {
		return false
	}
	return CanTransition(o.CurrentStatus(), enums.OrderStatusCancelled, enums.ActorCustomer)
}

// CanReturn combines the local guard with the server's can_be_returned hint.
func (o Order) CanReturn() bool {
	if o.CanBeReturned != nil && !*o.CanBeReturned {
		return false
	}
	return CanTransition(o.CurrentStatus(), enums.OrderStatusReturnRequested, enums.ActorCustomer)
}

// AvailableActions lists the customer actions legal right now.
func AvailableActions(o Order) []Action {
	actions := []Action{}
	if o.CanCancel() {
		actions = append(actions, ActionCancel)
	}
	if o.CanReturn() {
		actions = append(actions, ActionRequestReturn)
	}
	return actions
}

func (a Action) target() enums.OrderStatus {
	if a == ActionRequestReturn {
		return enums.OrderStatusReturnRequested
	}
	return enums.OrderStatusCancelled
}

func guard(o Order, action Action) error {
	var legal bool
	switch action {
	case ActionCancel:
		legal = o.CanCancel()
	case ActionRequestReturn:
		legal = o.CanReturn()
	}
	if legal {
		return nil
	}
	status := o.CurrentStatus()
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s an order that is %s", action, status.Label())).WithDetails(map[string]any{
		"order_id": o.ID.String(),
		"status":   status,
		"action":   action,
	})
}
