// README: Assignment store; claim and decision write route and assignment in one transaction.
package assignment

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"routedesk/internal/storeutil"
	"routedesk/internal/types"
)

type Store struct {
	db    *pgxpool.Pool
	retry storeutil.Retrier
}

func NewStore(db *pgxpool.Pool, retry storeutil.Retrier) *Store {
	return &Store{db: db, retry: retry}
}

// Claim marks an available route pending and records the assignment. A
// route that is already pending or assigned yields ErrRouteNotAvailable.
func (s *Store) Claim(ctx context.Context, a *Assignment) error {
	return s.retry.Do(ctx, "assignment.claim", func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, `
			UPDATE routes
			SET is_pending = TRUE,
			    pending_since = $2,
			    status_version = status_version + 1
			WHERE id = $1 AND NOT is_assigned AND NOT is_pending`,
			string(a.RouteID), a.CreatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM routes WHERE id = $1)`,
				string(a.RouteID)).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return storeutil.Domain(ErrNotFound)
			}
			return storeutil.Domain(ErrRouteNotAvailable)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO route_assignments (id, route_id, driver_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			string(a.ID), string(a.RouteID), string(a.DriverID), string(StatusPending), a.CreatedAt,
		)
		if storeutil.IsUniqueViolation(err) {
			return storeutil.Domain(ErrRouteNotAvailable)
		}
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// Decide moves a pending assignment to approved or rejected and updates its
// route to match.
func (s *Store) Decide(ctx context.Context, d Decision) (*Assignment, error) {
	var out *Assignment
	err := s.retry.Do(ctx, "assignment.decide", func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		a, err := scanAssignment(tx.QueryRow(ctx, `
			UPDATE route_assignments
			SET status = $2, decided_by = $3, updated_at = $4
			WHERE id = $1 AND status = 'pending'
			RETURNING `+assignmentColumns,
			string(d.AssignmentID), string(d.To), string(d.DecidedBy), d.At,
		))
		if storeutil.IsNoRows(err) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM route_assignments WHERE id = $1)`,
				string(d.AssignmentID)).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return storeutil.Domain(ErrNotFound)
			}
			return storeutil.Domain(ErrInvalidState)
		}
		if err != nil {
			return err
		}

		var tag pgconn.CommandTag
		switch d.To {
		case StatusApproved:
			tag, err = tx.Exec(ctx, `
				UPDATE routes
				SET is_assigned = TRUE,
				    is_pending = FALSE,
				    pending_since = NULL,
				    assigned_driver_id = $2,
				    assigned_driver_name = $3,
				    assigned_driver_vehicle_type = $4,
				    status_version = status_version + 1
				WHERE id = $1 AND is_pending`,
				string(a.RouteID), string(a.DriverID), nullIfEmpty(d.DriverName), nullIfEmpty(d.VehicleType),
			)
		case StatusRejected:
			tag, err = tx.Exec(ctx, `
				UPDATE routes
				SET is_pending = FALSE,
				    pending_since = NULL,
				    status_version = status_version + 1
				WHERE id = $1 AND is_pending`,
				string(a.RouteID),
			)
		default:
			return storeutil.Domain(ErrInvalidState)
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return storeutil.Domain(ErrInvalidState)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

const assignmentColumns = `id, route_id, driver_id, status, decided_by, created_at, updated_at`

// nullIfEmpty keeps an unknown driver name or vehicle NULL rather than ''.
func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	var id, routeID, driverID, status string
	var decidedBy *string
	if err := row.Scan(&id, &routeID, &driverID, &status, &decidedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = types.ID(id)
	a.RouteID = types.ID(routeID)
	a.DriverID = types.ID(driverID)
	a.Status = Status(status)
	if decidedBy != nil {
		v := types.ID(*decidedBy)
		a.DecidedBy = &v
	}
	return &a, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	var out *Assignment
	err := s.retry.Do(ctx, "assignment.get", func(ctx context.Context) error {
		a, err := scanAssignment(s.db.QueryRow(ctx,
			`SELECT `+assignmentColumns+` FROM route_assignments WHERE id = $1`, string(id)))
		if storeutil.IsNoRows(err) {
			return storeutil.Domain(ErrNotFound)
		}
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

const viewQuery = `
	SELECT a.id, a.route_id, a.driver_id, a.status, a.decided_by, a.created_at, a.updated_at,
	       r.name, r.city, r.shift, r.service_date, r.total_distance, r.sequence,
	       COALESCE(p.name, ''), COALESCE(p.vehicle_type, '')
	FROM route_assignments a
	JOIN routes r ON r.id = a.route_id
	LEFT JOIN profiles p ON p.id = a.driver_id`

// ListPending is the admin review queue, oldest claim first.
func (s *Store) ListPending(ctx context.Context) ([]View, error) {
	return s.views(ctx, "assignment.list_pending",
		viewQuery+` WHERE a.status = 'pending' ORDER BY a.created_at, a.id`)
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]View, error) {
	return s.views(ctx, "assignment.list_by_driver",
		viewQuery+` WHERE a.driver_id = $1 ORDER BY a.created_at DESC, a.id`, string(driverID))
}

func (s *Store) views(ctx context.Context, op, q string, args ...any) ([]View, error) {
	var out []View
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		list := make([]View, 0)
		for rows.Next() {
			var v View
			var id, routeID, driverID, status, shift string
			var decidedBy *string
			var date time.Time
			if err := rows.Scan(&id, &routeID, &driverID, &status, &decidedBy, &v.CreatedAt, &v.UpdatedAt,
				&v.RouteName, &v.City, &shift, &date, &v.TotalDistance, &v.Sequence,
				&v.DriverName, &v.VehicleType); err != nil {
				return err
			}
			v.ID = types.ID(id)
			v.RouteID = types.ID(routeID)
			v.DriverID = types.ID(driverID)
			v.Status = Status(status)
			if decidedBy != nil {
				d := types.ID(*decidedBy)
				v.DecidedBy = &d
			}
			v.Shift = types.Shift(shift)
			v.ServiceDate = types.DateOf(date)
			list = append(list, v)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = list
		return nil
	})
	return out, err
}
