// README: Route repository on PostgreSQL.
package route

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
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

// Columns is the select list understood by Scan.
const Columns = `id, name, city, neighborhoods, total_distance, sequence, shift, service_date,
	created_at, raw_rows, content_hash, is_assigned, is_pending, pending_since,
	assigned_driver_id, assigned_driver_name, assigned_driver_vehicle_type, status_version`

// Scan reads one row selected with Columns.
func Scan(row pgx.Row) (*Route, error) {
	var r Route
	var id, shift string
	var date time.Time
	var driverID *string
	if err := row.Scan(&id, &r.Name, &r.City, &r.Neighborhoods, &r.TotalDistance, &r.Sequence,
		&shift, &date, &r.CreatedAt, &r.RawRows, &r.ContentHash, &r.IsAssigned, &r.IsPending,
		&r.PendingSince, &driverID, &r.AssignedDriverName, &r.AssignedDriverVehicleType,
		&r.StatusVersion); err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.Shift = types.Shift(shift)
	r.ServiceDate = types.DateOf(date)
	if driverID != nil {
		d := types.ID(*driverID)
		r.AssignedDriverID = &d
	}
	return &r, nil
}

var errIdentityTaken = errors.New("route identity taken")

// Insert stores r. A route already holding (name, shift, date) yields
// *DuplicateRouteError.
func (s *Store) Insert(ctx context.Context, r *Route) error {
	neighborhoods := r.Neighborhoods
	if neighborhoods == nil {
		neighborhoods = []string{}
	}
	raw := r.RawRows
	if raw == nil {
		raw = [][]string{}
	}
	err := s.retry.Do(ctx, "route.insert", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO routes (
				id, name, city, city_key, neighborhoods, total_distance, sequence,
				shift, service_date, raw_rows, content_hash, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			string(r.ID), r.Name, r.City, types.RegionKey(r.City), neighborhoods,
			r.TotalDistance, r.Sequence, string(r.Shift), r.ServiceDate, raw,
			r.ContentHash, r.CreatedAt,
		)
		if storeutil.IsUniqueViolation(err) {
			return storeutil.Domain(errIdentityTaken)
		}
		return err
	})
	if !errors.Is(err, errIdentityTaken) {
		return err
	}
	dup := &DuplicateRouteError{Name: r.Name, Shift: r.Shift, Date: r.ServiceDate}
	existing, err := s.FindDuplicate(ctx, r.Name, r.Shift, r.ServiceDate)
	if err != nil {
		return err
	}
	if existing != nil {
		dup.ExistingID = existing.ID
	}
	return dup
}

// FindDuplicate returns the route sharing (name, shift, date), or nil.
func (s *Store) FindDuplicate(ctx context.Context, name string, shift types.Shift, date time.Time) (*Route, error) {
	var out *Route
	err := s.retry.Do(ctx, "route.find_duplicate", func(ctx context.Context) error {
		r, err := Scan(s.db.QueryRow(ctx, `
			SELECT `+Columns+` FROM routes
			WHERE name = $1 AND shift = $2 AND service_date = $3
			ORDER BY created_at
			LIMIT 1`, name, string(shift), date))
		if storeutil.IsNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Route, error) {
	var out *Route
	err := s.retry.Do(ctx, "route.get", func(ctx context.Context) error {
		r, err := Scan(s.db.QueryRow(ctx, `SELECT `+Columns+` FROM routes WHERE id = $1`, string(id)))
		if storeutil.IsNoRows(err) {
			return storeutil.Domain(ErrNotFound)
		}
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func (s *Store) List(ctx context.Context, f Filter) ([]*Route, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.City != "" {
		add("city_key = $%d", types.RegionKey(f.City))
	}
	if f.Shift != nil {
		add("shift = $%d", string(*f.Shift))
	}
	if f.Date != nil {
		add("service_date = $%d", types.DateOf(*f.Date))
	}
	if f.Status != nil {
		switch *f.Status {
		case StatusAvailable:
			where = append(where, "NOT is_assigned AND NOT is_pending")
		case StatusPending:
			where = append(where, "is_pending")
		case StatusAssigned:
			where = append(where, "is_assigned")
		}
	}
	q := `SELECT ` + Columns + ` FROM routes`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.query(ctx, "route.list", q, args...)
}

// ListAvailable returns open routes whose folded city is in cityKeys.
func (s *Store) ListAvailable(ctx context.Context, cityKeys []string, q AvailableQuery) ([]*Route, error) {
	var shift *string
	if q.Shift != nil {
		v := string(*q.Shift)
		shift = &v
	}
	var date *time.Time
	if q.Date != nil {
		d := types.DateOf(*q.Date)
		date = &d
	}
	return s.query(ctx, "route.list_available", `
		SELECT `+Columns+` FROM routes
		WHERE NOT is_assigned AND NOT is_pending
		  AND city_key = ANY($1)
		  AND ($2::date IS NULL OR service_date = $2)
		  AND ($3::text IS NULL OR shift = $3)
		ORDER BY created_at DESC, id`, cityKeys, date, shift)
}

func (s *Store) query(ctx context.Context, op, q string, args ...any) ([]*Route, error) {
	var out []*Route
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		list := make([]*Route, 0)
		for rows.Next() {
			r, err := Scan(rows)
			if err != nil {
				return err
			}
			list = append(list, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = list
		return nil
	})
	return out, err
}

// Delete removes the route in any state; assignments go with it.
func (s *Store) Delete(ctx context.Context, id types.ID) error {
	return s.retry.Do(ctx, "route.delete", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `DELETE FROM routes WHERE id = $1`, string(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storeutil.Domain(ErrNotFound)
		}
		return nil
	})
}

// DeleteMany removes the given routes in one statement and returns the ids
// that existed.
func (s *Store) DeleteMany(ctx context.Context, ids []types.ID) ([]types.ID, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	var out []types.ID
	err := s.retry.Do(ctx, "route.delete_many", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `DELETE FROM routes WHERE id = ANY($1) RETURNING id`, raw)
		if err != nil {
			return err
		}
		defer rows.Close()
		deleted := make([]types.ID, 0, len(ids))
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			deleted = append(deleted, types.ID(id))
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = deleted
		return nil
	})
	return out, err
}
