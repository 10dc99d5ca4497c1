// README: Route record imported from a spreadsheet and its availability state.
package route

import (
	"errors"
	"fmt"
	"time"

	"routedesk/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
)

func ParseStatus(v string) (Status, error) {
	switch Status(v) {
	case StatusAvailable, StatusPending, StatusAssigned:
		return Status(v), nil
	}
	return "", fmt.Errorf("unknown route status %q", v)
}

var (
	ErrNotFound   = errors.New("route not found")
	ErrBadRequest = errors.New("bad request")
)

// DuplicateRouteError rejects an import whose (name, shift, date) already
// exists. Nothing is written.
type DuplicateRouteError struct {
	Name       string
	Shift      types.Shift
	Date       time.Time
	ExistingID types.ID
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("route %q already imported for %s %s (id %s)",
		e.Name, types.FormatDate(e.Date), e.Shift, e.ExistingID)
}

type Route struct {
	ID                        types.ID    `json:"id"`
	Name                      string      `json:"name"`
	City                      string      `json:"city"`
	Neighborhoods             []string    `json:"neighborhoods"`
	TotalDistance             float64     `json:"total_distance"`
	Sequence                  int         `json:"sequence"`
	Shift                     types.Shift `json:"shift"`
	ServiceDate               time.Time   `json:"service_date"`
	CreatedAt                 time.Time   `json:"created_at"`
	RawRows                   [][]string  `json:"raw_rows,omitempty"`
	ContentHash               string      `json:"content_hash,omitempty"`
	IsAssigned                bool        `json:"is_assigned"`
	IsPending                 bool        `json:"is_pending"`
	PendingSince              *time.Time  `json:"pending_since,omitempty"`
	AssignedDriverID          *types.ID   `json:"assigned_driver_id,omitempty"`
	AssignedDriverName        *string     `json:"assigned_driver_name,omitempty"`
	AssignedDriverVehicleType *string     `json:"assigned_driver_vehicle_type,omitempty"`
	StatusVersion             int         `json:"status_version"`
}

// Status derives the single lifecycle state from the two flags.
func (r *Route) Status() Status {
	switch {
	case r.IsAssigned:
		return StatusAssigned
	case r.IsPending:
		return StatusPending
	default:
		return StatusAvailable
	}
}

func (r *Route) Available() bool {
	return !r.IsAssigned && !r.IsPending
}

type Filter struct {
	City   string
	Shift  *types.Shift
	Date   *time.Time
	Status *Status
	Limit  int
}

type AvailableQuery struct {
	Date  *time.Time
	Shift *types.Shift
}
