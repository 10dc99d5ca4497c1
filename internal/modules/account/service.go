// README: Account service: registration, role checks, regions, verifications and shift scheduling.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"

	"routedesk/internal/types"
)

// Repository is the persistence surface the service needs; *Store implements it.
type Repository interface {
	GetProfile(ctx context.Context, id types.ID) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
	SetRole(ctx context.Context, id types.ID, role Role) error
	UpdateRegions(ctx context.Context, id types.ID, cfg RegionConfig) error
	SaveVerification(ctx context.Context, id types.ID, v Verification) error
	ListDrivers(ctx context.Context) ([]*Profile, error)
	AddShift(ctx context.Context, sel ShiftSelection) error
	ListShifts(ctx context.Context, f ShiftFilter) ([]ShiftSelection, error)
}

// Oracle reads a verification document and reports what it found.
type Oracle interface {
	Extract(ctx context.Context, kind VerificationKind, image []byte, mimeType string) (*Extraction, error)
}

// Quota charges one extraction against the caller's monthly allowance.
type Quota interface {
	UseToken(ctx context.Context, uid string) error
}

type Service struct {
	store   Repository
	cache   Cache
	oracle  Oracle
	quota   Quota
	catalog *Catalog
	admins  map[types.ID]struct{}
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithOracle(o Oracle) Option { return func(s *Service) { s.oracle = o } }

func WithQuota(q Quota) Option { return func(s *Service) { s.quota = q } }

func WithCatalog(c *Catalog) Option { return func(s *Service) { s.catalog = c } }

// WithLocation sets the zone whose calendar decides which service dates are
// already in the past.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAdmins lists uids that are granted the admin role when they register.
func WithAdmins(ids ...types.ID) Option {
	return func(s *Service) {
		for _, id := range ids {
			if id != "" {
				s.admins[id] = struct{}{}
			}
		}
	}
}

func NewService(store Repository, opts ...Option) *Service {
	s := &Service{store: store, admins: map[types.ID]struct{}{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

type RegisterCommand struct {
	Name        string
	VehicleType string
	DeviceToken string
}

// Register creates or refreshes the caller's profile. New profiles are
// drivers unless the uid is a configured admin.
func (s *Service) Register(ctx context.Context, actor Actor, cmd RegisterCommand) (*Profile, error) {
	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	role := RoleDriver
	if _, ok := s.admins[actor.ID]; ok {
		role = RoleAdmin
	}
	now := s.now()
	p := &Profile{
		ID:          actor.ID,
		Name:        strings.TrimSpace(cmd.Name),
		Role:        role,
		VehicleType: strings.TrimSpace(cmd.VehicleType),
		DeviceToken: strings.TrimSpace(cmd.DeviceToken),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	if role == RoleAdmin {
		if err := s.store.SetRole(ctx, actor.ID, RoleAdmin); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx, actor.ID)
	return s.load(ctx, actor.ID)
}

// Profile is a read-through lookup.
func (s *Service) Profile(ctx context.Context, id types.ID) (*Profile, error) {
	if s.cache != nil {
		p, err := s.cache.Get(ctx, id)
		if err != nil {
			log.WithField("uid", id).Warnf("profile cache read: %v", err)
		}
		if p != nil {
			return p, nil
		}
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id types.ID) (*Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			log.WithField("uid", id).Warnf("profile cache write: %v", err)
		}
	}
	return p, nil
}

func (s *Service) invalidate(ctx context.Context, id types.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.WithField("uid", id).Warnf("profile cache invalidate: %v", err)
	}
}

// Authorize loads the actor's stored profile and checks its role. Unknown
// actors are unauthorized, never "not found".
func (s *Service) Authorize(ctx context.Context, actor Actor, roles ...Role) (*Profile, error) {
	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	p, err := s.Profile(ctx, actor.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return p, nil
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	return nil, ErrUnauthorized
}

func (s *Service) SetRegions(ctx context.Context, actor Actor, cfg RegionConfig) (*Profile, error) {
	if _, err := s.Authorize(ctx, actor, RoleDriver); err != nil {
		return nil, err
	}
	norm, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	primary, ok := s.catalog.Canonical(norm.Primary)
	if !ok {
		return nil, ErrInvalidRegion
	}
	norm.Primary = primary
	for i, b := range norm.Backups {
		canon, ok := s.catalog.Canonical(b)
		if !ok {
			return nil, ErrInvalidRegion
		}
		norm.Backups[i] = canon
	}
	if err := s.store.UpdateRegions(ctx, actor.ID, norm); err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.ID)
	log.WithFields(log.Fields{"uid": actor.ID, "primary": norm.Primary, "backups": len(norm.Backups)}).Info("regions updated")
	return s.load(ctx, actor.ID)
}

// Verify runs a document through the oracle and stores the resulting record.
// Every attempt that reaches the oracle costs one quota token.
func (s *Service) Verify(ctx context.Context, actor Actor, kind VerificationKind, image []byte, mimeType string) (*Verification, error) {
	if !kind.IsValid() || len(image) == 0 {
		return nil, ErrBadRequest
	}
	if _, err := s.Authorize(ctx, actor, RoleDriver); err != nil {
		return nil, err
	}
	if s.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	if s.quota != nil {
		if err := s.quota.UseToken(ctx, string(actor.ID)); err != nil {
			return nil, err
		}
	}
	ext, err := s.oracle.Extract(ctx, kind, image, mimeType)
	if err != nil {
		log.WithFields(log.Fields{"uid": actor.ID, "kind": kind}).Errorf("oracle: %v", err)
		return nil, ErrOracleUnavailable
	}
	if !ext.Verified {
		log.WithFields(log.Fields{"uid": actor.ID, "kind": kind, "reason": ext.Reason}).Info("verification rejected")
		return nil, ErrVerificationRejected
	}
	v := newVerification(kind, ext, s.now())
	return s.save(ctx, actor.ID, v)
}

func (s *Service) save(ctx context.Context, id types.ID, v Verification) (*Verification, error) {
	if err := s.store.SaveVerification(ctx, id, v); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	log.WithFields(log.Fields{"uid": id, "kind": v.Kind, "expires_at": v.ExpiresAt}).Info("verification recorded")
	return &v, nil
}

func newVerification(kind VerificationKind, ext *Extraction, now time.Time) Verification {
	v := Verification{
		Kind:       kind,
		VerifiedAt: now,
		ExpiresAt:  now.Add(kind.Validity()),
	}
	switch kind {
	case KindIdentity:
		v.HolderName = strings.TrimSpace(ext.HolderName)
		v.DocumentNumber = strings.TrimSpace(ext.DocumentNumber)
		v.VehicleType = strings.TrimSpace(ext.VehicleType)
		v.Plate = strings.TrimSpace(ext.Plate)
	case KindDeliveryRate:
		rate := ext.DeliveryRate
		v.DeliveryRate = &rate
	}
	return v
}

// ScheduleShift books the driver for a shift. Both verifications must be
// current at the time of the call.
func (s *Service) ScheduleShift(ctx context.Context, actor Actor, date time.Time, shift types.Shift) (*ShiftSelection, error) {
	if !shift.IsValid() || date.IsZero() {
		return nil, ErrBadRequest
	}
	now := s.now()
	day := types.DateOf(date)
	if day.Before(types.Today(now, s.loc)) {
		return nil, ErrBadRequest
	}
	// Bypass the cache: expiry must be judged on the stored records.
	if _, err := s.Authorize(ctx, actor, RoleDriver); err != nil {
		return nil, err
	}
	p, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !p.CanSchedule(now) {
		return nil, ErrVerificationRequired
	}
	sel := ShiftSelection{DriverID: actor.ID, ServiceDate: day, Shift: shift, CreatedAt: now}
	if err := s.store.AddShift(ctx, sel); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"uid": actor.ID, "date": types.FormatDate(day), "shift": shift}).Info("shift scheduled")
	return &sel, nil
}

func (s *Service) Shifts(ctx context.Context, actor Actor) ([]ShiftSelection, error) {
	if _, err := s.Authorize(ctx, actor, RoleDriver); err != nil {
		return nil, err
	}
	id := actor.ID
	return s.store.ListShifts(ctx, ShiftFilter{DriverID: &id})
}

// Drivers lists every driver profile with verifications. Admin only.
func (s *Service) Drivers(ctx context.Context, actor Actor) ([]*Profile, error) {
	if _, err := s.Authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListDrivers(ctx)
}

// AllShifts lists shift selections matching f. Admin only.
func (s *Service) AllShifts(ctx context.Context, actor Actor, f ShiftFilter) ([]ShiftSelection, error) {
	if _, err := s.Authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListShifts(ctx, f)
}
