package orders

import (
	"fmt"

	"github.com/angelmondragon/storefront-core/pkg/enums"
)

// History is an order's status log. It only ever grows.
type History []StatusEvent

// Sorted returns the log oldest to newest. Entries without a readable
// timestamp keep their position.
func (h History) Sorted() History {
	out := make(History, len(h))
	copy(out, h)
	sortEvents(out)
	return out
}

func (h History) Last() (StatusEvent, bool) {
	if len(h) == 0 {
		return StatusEvent{}, false
	}
	return h[len(h)-1], true
}

// Extends verifies h is prev with zero or more entries appended.
func (h History) Extends(prev History) error {
	cur, old := h.Sorted(), prev.Sorted()
	if len(cur) < len(old) {
		return fmt.Errorf("status history shrank from %d to %d entries", len(old), len(cur))
	}
	for i := range old {
		if cur[i] != old[i] {
			return fmt.Errorf("status history entry %d rewritten: %s -> %s", i, old[i].Status, cur[i].Status)
		}
	}
	return nil
}

// TimelineEntry is one rendered row of the order timeline. Step is the
// position on the fulfillment path, -1 for cancellation and returns.
type TimelineEntry struct {
	Status    enums.OrderStatus `json:"status"`
	Label     string            `json:"label"`
	Step      int               `json:"step"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt string            `json:"created_at"`
	Current   bool              `json:"current"`
}

// Timeline renders the status log oldest to newest with display labels.
// The newest entry is marked current.
func Timeline(o Order) []TimelineEntry {
	events := o.Statuses.Sorted()
	out := make([]TimelineEntry, 0, len(events))
	for i, ev := range events {
		out = append(out, TimelineEntry{
			Status:    ev.Status,
			Label:     ev.Status.Label(),
			Step:      ev.Status.Stage(),
			Notes:     ev.Notes,
			CreatedAt: ev.CreatedAt,
			Current:   i == len(events)-1,
		})
	}
	if len(out) == 0 && o.Status != "" {
		out = append(out, TimelineEntry{Status: o.Status, Label: o.Status.Label(), Step: o.Status.Stage(), CreatedAt: o.CreatedAt, Current: true})
	}
	return out
}
