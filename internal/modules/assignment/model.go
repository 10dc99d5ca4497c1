// README: Route claims and their review lifecycle.
package assignment

import (
	"errors"
	"time"

	"routedesk/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// AllowedTransitions lists legal status moves. Approved and rejected are
// terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusApproved, StatusRejected},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrNotFound          = errors.New("assignment not found")
	ErrInvalidState      = errors.New("assignment is not pending")
	ErrRouteNotAvailable = errors.New("route no longer available, refresh and retry")
	ErrOutsideRegion     = errors.New("route is outside the driver's regions")
)

type Assignment struct {
	ID        types.ID  `json:"id"`
	RouteID   types.ID  `json:"route_id"`
	DriverID  types.ID  `json:"driver_id"`
	Status    Status    `json:"status"`
	DecidedBy *types.ID `json:"decided_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View joins an assignment with the route and driver it refers to.
type View struct {
	Assignment
	RouteName     string      `json:"route_name"`
	City          string      `json:"city"`
	Shift         types.Shift `json:"shift"`
	ServiceDate   time.Time   `json:"service_date"`
	TotalDistance float64     `json:"total_distance"`
	Sequence      int         `json:"sequence"`
	DriverName    string      `json:"driver_name"`
	VehicleType   string      `json:"vehicle_type,omitempty"`
}

// Decision is an admin verdict on a pending assignment.
type Decision struct {
	AssignmentID types.ID
	To           Status
	DecidedBy    types.ID
	At           time.Time
	// Copied onto the route on approval.
	DriverName  string
	VehicleType string
}
