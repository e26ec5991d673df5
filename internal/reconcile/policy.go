package reconcile

import "payment-webhook-service/internal/model"

func notifyOnCreate(status model.Status) *model.EventType {
	t, ok := model.EventTypeFor(status)
	if !ok {
		return nil
	}
	return &t
}

// notifyOnUpdate fires only on the first entry into a notifiable status.
// Re-deliveries of the same status and returns to a status the sale already
// passed through stay silent. existing must not yet contain the new event.
func notifyOnUpdate(existing *model.Sale, next model.Status) *model.EventType {
	t, ok := model.EventTypeFor(next)
	if !ok {
		return nil
	}
	if existing.Status == next || existing.HasReached(next) {
		return nil
	}
	return &t
}
