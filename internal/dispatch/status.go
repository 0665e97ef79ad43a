package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// StatusReader projects the ephemeral dispatch state into the view served to
// polling clients.
type StatusReader struct {
	store StoreInterface
}

// NewStatusReader creates a status reader over the dispatch store.
func NewStatusReader(store StoreInterface) *StatusReader {
	return &StatusReader{store: store}
}

// Status returns the current dispatch status for a request. Driver and ETA
// are populated only for accepted requests; for every other status they are
// omitted even if stale keys linger.
func (r *StatusReader) Status(ctx context.Context, requestID uuid.UUID) (*StatusView, error) {
	status, err := r.store.GetStatus(ctx, requestID)
	if err != nil {
		return nil, err
	}

	view := &StatusView{Status: status}
	if status != StatusAccepted {
		return view, nil
	}

	assigned, err := r.store.GetAssignedDriver(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if assigned != "" {
		if driverID, err := uuid.Parse(assigned); err == nil {
			view.DriverID = &driverID
		}
	}

	eta, ok, err := r.store.GetEta(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if ok {
		view.EstimatedArrival = &eta
	}

	return view, nil
}
