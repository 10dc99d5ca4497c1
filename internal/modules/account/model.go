// README: Driver/admin profiles, region configuration, verifications and shift selections.
package account

import (
	"errors"
	"strings"
	"time"

	"routedesk/internal/types"
)

type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleDriver || r == RoleAdmin
}

// Actor is the authenticated caller of a service operation. Only the id is
// taken from the request; the role is always re-read from the store.
type Actor struct {
	ID types.ID
}

type VerificationKind string

const (
	KindIdentity     VerificationKind = "identity"
	KindDeliveryRate VerificationKind = "delivery_rate"
)

// Validity windows, counted from the moment of verification.
const (
	IdentityValidity     = 14 * 24 * time.Hour
	DeliveryRateValidity = 3 * 24 * time.Hour
)

func (k VerificationKind) IsValid() bool {
	return k == KindIdentity || k == KindDeliveryRate
}

func (k VerificationKind) Validity() time.Duration {
	if k == KindDeliveryRate {
		return DeliveryRateValidity
	}
	return IdentityValidity
}

const MaxBackupRegions = 3

var (
	ErrNotFound             = errors.New("profile not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrBadRequest           = errors.New("bad request")
	ErrInvalidRegion        = errors.New("unknown region")
	ErrTooManyBackupRegions = errors.New("at most 3 backup regions")
	ErrVerificationRequired = errors.New("valid identity and delivery-rate verifications required")
	ErrVerificationRejected = errors.New("document could not be verified")
	ErrOracleUnavailable    = errors.New("verification service unavailable")
)

type Verification struct {
	Kind           VerificationKind `json:"kind"`
	HolderName     string           `json:"holder_name,omitempty"`
	DocumentNumber string           `json:"document_number,omitempty"`
	VehicleType    string           `json:"vehicle_type,omitempty"`
	Plate          string           `json:"plate,omitempty"`
	DeliveryRate   *float64         `json:"delivery_rate,omitempty"`
	VerifiedAt     time.Time        `json:"verified_at"`
	ExpiresAt      time.Time        `json:"expires_at"`
}

// ValidAt treats an expired record as absent.
func (v *Verification) ValidAt(now time.Time) bool {
	return v != nil && now.Before(v.ExpiresAt)
}

type Profile struct {
	ID            types.ID      `json:"id"`
	Name          string        `json:"name"`
	Role          Role          `json:"role"`
	VehicleType   string        `json:"vehicle_type,omitempty"`
	DeviceToken   string        `json:"device_token,omitempty"`
	PrimaryRegion string        `json:"primary_region,omitempty"`
	BackupRegions []string      `json:"backup_regions,omitempty"`
	Identity      *Verification `json:"identity,omitempty"`
	DeliveryRate  *Verification `json:"delivery_rate,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Regions is the primary region followed by the backups; empty when nothing
// is configured.
func (p *Profile) Regions() []string {
	if p.PrimaryRegion == "" {
		return append([]string(nil), p.BackupRegions...)
	}
	return append([]string{p.PrimaryRegion}, p.BackupRegions...)
}

// CanSchedule reports whether both verifications are current.
func (p *Profile) CanSchedule(now time.Time) bool {
	return p.Identity.ValidAt(now) && p.DeliveryRate.ValidAt(now)
}

func (p *Profile) setVerification(v Verification) {
	vv := v
	switch v.Kind {
	case KindIdentity:
		p.Identity = &vv
	case KindDeliveryRate:
		p.DeliveryRate = &vv
	}
}

// RegionConfig is a driver's requested region selection before validation.
type RegionConfig struct {
	Primary string
	Backups []string
}

// Normalize trims names, drops backups equal to the primary or to each other
// and enforces the backup limit.
func (c RegionConfig) Normalize() (RegionConfig, error) {
	out := RegionConfig{Primary: strings.TrimSpace(c.Primary)}
	if out.Primary == "" {
		return RegionConfig{}, ErrBadRequest
	}
	seen := map[string]struct{}{types.RegionKey(out.Primary): {}}
	for _, b := range c.Backups {
		b = strings.TrimSpace(b)
		k := types.RegionKey(b)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Backups = append(out.Backups, b)
	}
	if len(out.Backups) > MaxBackupRegions {
		return RegionConfig{}, ErrTooManyBackupRegions
	}
	return out, nil
}

type ShiftSelection struct {
	DriverID    types.ID    `json:"driver_id"`
	ServiceDate time.Time   `json:"service_date"`
	Shift       types.Shift `json:"shift"`
	CreatedAt   time.Time   `json:"created_at"`
}

type ShiftFilter struct {
	DriverID *types.ID
	Date     *time.Time
	Shift    *types.Shift
}

// Extraction is what a verification oracle read from a document.
type Extraction struct {
	Verified       bool
	Reason         string
	HolderName     string
	DocumentNumber string
	VehicleType    string
	Plate          string
	DeliveryRate   float64
}
