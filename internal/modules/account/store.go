// README: Profile, verification and shift persistence on PostgreSQL.
package account

import (
	"context"
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

const profileColumns = `id, name, role, vehicle_type, device_token, primary_region, backup_regions, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var id, role string
	if err := row.Scan(&id, &p.Name, &role, &p.VehicleType, &p.DeviceToken,
		&p.PrimaryRegion, &p.BackupRegions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = types.ID(id)
	p.Role = Role(role)
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, id types.ID) (*Profile, error) {
	var out *Profile
	err := s.retry.Do(ctx, "account.get_profile", func(ctx context.Context) error {
		p, err := scanProfile(s.db.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, string(id)))
		if storeutil.IsNoRows(err) {
			return storeutil.Domain(ErrNotFound)
		}
		if err != nil {
			return err
		}
		vs, err := s.verifications(ctx, s.db, []string{string(id)})
		if err != nil {
			return err
		}
		for _, v := range vs[string(id)] {
			p.setVerification(v)
		}
		out = p
		return nil
	})
	return out, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) verifications(ctx context.Context, q querier, ids []string) (map[string][]Verification, error) {
	rows, err := q.Query(ctx, `
		SELECT driver_id, kind, holder_name, document_number, vehicle_type, plate,
		       delivery_rate, verified_at, expires_at
		FROM verifications
		WHERE driver_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Verification)
	for rows.Next() {
		var driverID, kind string
		var v Verification
		if err := rows.Scan(&driverID, &kind, &v.HolderName, &v.DocumentNumber, &v.VehicleType,
			&v.Plate, &v.DeliveryRate, &v.VerifiedAt, &v.ExpiresAt); err != nil {
			return nil, err
		}
		v.Kind = VerificationKind(kind)
		out[driverID] = append(out[driverID], v)
	}
	return out, rows.Err()
}

// UpsertProfile creates the profile or refreshes its name, vehicle type and
// device token. Role and regions are never touched here.
func (s *Store) UpsertProfile(ctx context.Context, p *Profile) error {
	return s.retry.Do(ctx, "account.upsert_profile", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO profiles (id, name, role, vehicle_type, device_token, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE profiles.name END,
				vehicle_type = CASE WHEN EXCLUDED.vehicle_type <> '' THEN EXCLUDED.vehicle_type ELSE profiles.vehicle_type END,
				device_token = CASE WHEN EXCLUDED.device_token <> '' THEN EXCLUDED.device_token ELSE profiles.device_token END,
				updated_at = EXCLUDED.updated_at`,
			string(p.ID), p.Name, string(p.Role), p.VehicleType, p.DeviceToken, p.UpdatedAt,
		)
		return err
	})
}

func (s *Store) SetRole(ctx context.Context, id types.ID, role Role) error {
	return s.retry.Do(ctx, "account.set_role", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx,
			`UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, string(id), string(role))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storeutil.Domain(ErrNotFound)
		}
		return nil
	})
}

func (s *Store) UpdateRegions(ctx context.Context, id types.ID, cfg RegionConfig) error {
	backups := cfg.Backups
	if backups == nil {
		backups = []string{}
	}
	return s.retry.Do(ctx, "account.update_regions", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE profiles SET primary_region = $2, backup_regions = $3, updated_at = NOW()
			WHERE id = $1`, string(id), cfg.Primary, backups)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storeutil.Domain(ErrNotFound)
		}
		return nil
	})
}

// SaveVerification overwrites the driver's record of the same kind. An
// identity check that read a vehicle type also updates the profile.
func (s *Store) SaveVerification(ctx context.Context, id types.ID, v Verification) error {
	return s.retry.Do(ctx, "account.save_verification", func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx, `
			INSERT INTO verifications (
				driver_id, kind, holder_name, document_number, vehicle_type, plate,
				delivery_rate, verified_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (driver_id, kind) DO UPDATE SET
				holder_name = EXCLUDED.holder_name,
				document_number = EXCLUDED.document_number,
				vehicle_type = EXCLUDED.vehicle_type,
				plate = EXCLUDED.plate,
				delivery_rate = EXCLUDED.delivery_rate,
				verified_at = EXCLUDED.verified_at,
				expires_at = EXCLUDED.expires_at`,
			string(id), string(v.Kind), v.HolderName, v.DocumentNumber, v.VehicleType, v.Plate,
			v.DeliveryRate, v.VerifiedAt, v.ExpiresAt,
		)
		if err != nil {
			if storeutil.IsForeignKeyViolation(err) {
				return storeutil.Domain(ErrNotFound)
			}
			return err
		}
		if v.Kind == KindIdentity && v.VehicleType != "" {
			if _, err := tx.Exec(ctx,
				`UPDATE profiles SET vehicle_type = $2, updated_at = NOW() WHERE id = $1`,
				string(id), v.VehicleType); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
}

func (s *Store) ListDrivers(ctx context.Context) ([]*Profile, error) {
	var out []*Profile
	err := s.retry.Do(ctx, "account.list_drivers", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE role = 'driver' ORDER BY name, id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		var list []*Profile
		byID := make(map[string]*Profile)
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return err
			}
			list = append(list, p)
			byID[string(p.ID)] = p
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		ids := make([]string, 0, len(list))
		for _, p := range list {
			ids = append(ids, string(p.ID))
		}
		vs, err := s.verifications(ctx, s.db, ids)
		if err != nil {
			return err
		}
		for id, records := range vs {
			for _, v := range records {
				byID[id].setVerification(v)
			}
		}
		out = list
		return nil
	})
	return out, err
}

// AddShift is idempotent per (driver, date, shift).
func (s *Store) AddShift(ctx context.Context, sel ShiftSelection) error {
	return s.retry.Do(ctx, "account.add_shift", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO driver_shifts (driver_id, service_date, shift, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (driver_id, service_date, shift) DO NOTHING`,
			string(sel.DriverID), sel.ServiceDate, string(sel.Shift), sel.CreatedAt,
		)
		return err
	})
}

func (s *Store) ListShifts(ctx context.Context, f ShiftFilter) ([]ShiftSelection, error) {
	var driverID, shift *string
	if f.DriverID != nil {
		v := string(*f.DriverID)
		driverID = &v
	}
	if f.Shift != nil {
		v := string(*f.Shift)
		shift = &v
	}
	var out []ShiftSelection
	err := s.retry.Do(ctx, "account.list_shifts", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `
			SELECT driver_id, service_date, shift, created_at
			FROM driver_shifts
			WHERE ($1::text IS NULL OR driver_id = $1)
			  AND ($2::date IS NULL OR service_date = $2)
			  AND ($3::text IS NULL OR shift = $3)
			ORDER BY service_date, shift, driver_id`, driverID, f.Date, shift)
		if err != nil {
			return err
		}
		defer rows.Close()

		var list []ShiftSelection
		for rows.Next() {
			var sel ShiftSelection
			var id, sh string
			var date time.Time
			if err := rows.Scan(&id, &date, &sh, &sel.CreatedAt); err != nil {
				return err
			}
			sel.DriverID = types.ID(id)
			sel.ServiceDate = types.DateOf(date)
			sel.Shift = types.Shift(sh)
			list = append(list, sel)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = list
		return nil
	})
	return out, err
}
