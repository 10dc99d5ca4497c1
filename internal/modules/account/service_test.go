// README: Account service tests (roles, regions, verification expiry, shift gating).
package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/types"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, opts ...Option) (*Service, *memStore, *clock) {
	t.Helper()
	store := newMemStore()
	clk := &clock{now: t0}
	opts = append([]Option{
		WithClock(clk.Now),
		WithCatalog(NewCatalog([]string{"São Paulo", "Guarulhos", "Osasco", "Campinas", "Barueri"})),
		WithAdmins("admin-1"),
	}, opts...)
	return NewService(store, opts...), store, clk
}

func register(t *testing.T, svc *Service, id string) Actor {
	t.Helper()
	a := Actor{ID: types.ID(id)}
	_, err := svc.Register(context.Background(), a, RegisterCommand{Name: id, VehicleType: "van"})
	require.NoError(t, err)
	return a
}

// recordVerification stores a verification without going through the oracle.
func recordVerification(ctx context.Context, svc *Service, actor Actor, kind VerificationKind, ext Extraction) (*Verification, error) {
	return svc.save(ctx, actor.ID, newVerification(kind, &ext, svc.now()))
}

func TestRegisterAssignsRoleServerSide(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, Actor{ID: "driver-1"}, RegisterCommand{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, RoleDriver, p.Role)

	p, err = svc.Register(ctx, Actor{ID: "admin-1"}, RegisterCommand{Name: "Boss"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, p.Role)

	_, err = svc.Register(ctx, Actor{}, RegisterCommand{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthorize(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	driver := register(t, svc, "driver-1")
	admin := register(t, svc, "admin-1")

	_, err := svc.Authorize(ctx, driver, RoleAdmin)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Authorize(ctx, admin, RoleAdmin)
	assert.NoError(t, err)
	_, err = svc.Authorize(ctx, Actor{ID: "ghost"}, RoleDriver)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Authorize(ctx, driver)
	assert.NoError(t, err)
}

func TestRegionNormalize(t *testing.T) {
	cfg, err := RegionConfig{Primary: " Osasco ", Backups: []string{"osasco", "Barueri", "barueri", ""}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Osasco", cfg.Primary)
	assert.Equal(t, []string{"Barueri"}, cfg.Backups)

	_, err = RegionConfig{Primary: "A", Backups: []string{"B", "C", "D", "E"}}.Normalize()
	assert.ErrorIs(t, err, ErrTooManyBackupRegions)

	_, err = RegionConfig{Backups: []string{"B"}}.Normalize()
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestSetRegions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	driver := register(t, svc, "driver-1")

	p, err := svc.SetRegions(ctx, driver, RegionConfig{Primary: "sao paulo", Backups: []string{"Guarulhos", "SÃO PAULO"}})
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", p.PrimaryRegion)
	assert.Equal(t, []string{"Guarulhos"}, p.BackupRegions)

	reloaded, err := svc.Profile(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"São Paulo", "Guarulhos"}, reloaded.Regions())

	_, err = svc.SetRegions(ctx, driver, RegionConfig{Primary: "Atlantis"})
	assert.ErrorIs(t, err, ErrInvalidRegion)

	admin := register(t, svc, "admin-1")
	_, err = svc.SetRegions(ctx, admin, RegionConfig{Primary: "Osasco"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerificationValidity(t *testing.T) {
	v := newVerification(KindDeliveryRate, &Extraction{DeliveryRate: 97.5}, t0)
	assert.Equal(t, t0.Add(72*time.Hour), v.ExpiresAt)
	assert.True(t, v.ValidAt(t0.Add(72*time.Hour-time.Second)))
	assert.False(t, v.ValidAt(t0.Add(72*time.Hour+time.Second)))

	id := newVerification(KindIdentity, &Extraction{HolderName: " Ana "}, t0)
	assert.Equal(t, t0.Add(14*24*time.Hour), id.ExpiresAt)
	assert.Equal(t, "Ana", id.HolderName)

	var missing *Verification
	assert.False(t, missing.ValidAt(t0))
}

func TestScheduleShiftRequiresValidVerifications(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	driver := register(t, svc, "driver-1")
	day := t0.AddDate(0, 0, 5)

	_, err := svc.ScheduleShift(ctx, driver, day, types.ShiftAM)
	assert.ErrorIs(t, err, ErrVerificationRequired)

	_, err = recordVerification(ctx, svc, driver, KindIdentity, Extraction{HolderName: "Ana"})
	require.NoError(t, err)
	_, err = recordVerification(ctx, svc, driver, KindDeliveryRate, Extraction{DeliveryRate: 98})
	require.NoError(t, err)

	sel, err := svc.ScheduleShift(ctx, driver, day, types.ShiftAM)
	require.NoError(t, err)
	assert.Equal(t, types.DateOf(day), sel.ServiceDate)

	// Delivery rate lapses one second after three days.
	clk.now = t0.Add(3*24*time.Hour + time.Second)
	_, err = svc.ScheduleShift(ctx, driver, day, types.ShiftPM)
	assert.ErrorIs(t, err, ErrVerificationRequired)

	shifts, err := svc.Shifts(ctx, driver)
	require.NoError(t, err)
	assert.Len(t, shifts, 1)
}

func TestScheduleShiftRejectsPastDatesAndBadShift(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	driver := register(t, svc, "driver-1")

	_, err := svc.ScheduleShift(ctx, driver, t0.AddDate(0, 0, -1), types.ShiftAM)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.ScheduleShift(ctx, driver, t0, types.Shift("NIGHT"))
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestScheduleShiftJudgesPastInOperatingZone(t *testing.T) {
	svc, _, clk := newTestService(t, WithLocation(time.FixedZone("BRT", -3*60*60)))
	ctx := context.Background()
	driver := register(t, svc, "driver-1")
	_, err := recordVerification(ctx, svc, driver, KindIdentity, Extraction{HolderName: "Ana"})
	require.NoError(t, err)
	_, err = recordVerification(ctx, svc, driver, KindDeliveryRate, Extraction{DeliveryRate: 98})
	require.NoError(t, err)

	// 01:30 UTC on Mar 3 is still the evening of Mar 2 in São Paulo.
	clk.now = time.Date(2026, 3, 3, 1, 30, 0, 0, time.UTC)
	sel, err := svc.ScheduleShift(ctx, driver, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), types.ShiftPM)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), sel.ServiceDate)

	_, err = svc.ScheduleShift(ctx, driver, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), types.ShiftPM)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestVerifyUsesOracleAndQuota(t *testing.T) {
	oracle := &stubOracle{ext: &Extraction{Verified: true, HolderName: "Ana", VehicleType: "moto", Plate: "ABC1D23"}}
	quota := &stubQuota{}
	svc, store, _ := newTestService(t, WithOracle(oracle), WithQuota(quota))
	ctx := context.Background()
	driver := register(t, svc, "driver-1")

	v, err := svc.Verify(ctx, driver, KindIdentity, []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "ABC1D23", v.Plate)
	assert.Equal(t, []string{"driver-1"}, quota.used)
	assert.Equal(t, "moto", store.profiles["driver-1"].VehicleType)

	oracle.ext = &Extraction{Verified: false, Reason: "blurry"}
	_, err = svc.Verify(ctx, driver, KindIdentity, []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrVerificationRejected)

	oracle.err = errors.New("upstream down")
	_, err = svc.Verify(ctx, driver, KindIdentity, []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	quota.err = errors.New("insufficient tokens")
	calls := oracle.calls
	_, err = svc.Verify(ctx, driver, KindIdentity, []byte{1}, "image/png")
	assert.EqualError(t, err, "insufficient tokens")
	assert.Equal(t, calls, oracle.calls)

	_, err = svc.Verify(ctx, driver, KindIdentity, nil, "image/png")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestVerifyWithoutOracle(t *testing.T) {
	svc, _, _ := newTestService(t)
	driver := register(t, svc, "driver-1")
	_, err := svc.Verify(context.Background(), driver, KindDeliveryRate, []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestProfileCacheInvalidatedOnWrite(t *testing.T) {
	cache := newMemCache()
	svc, _, _ := newTestService(t, WithCache(cache))
	ctx := context.Background()
	driver := register(t, svc, "driver-1")

	_, err := svc.Profile(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	_, err = svc.SetRegions(ctx, driver, RegionConfig{Primary: "Campinas"})
	require.NoError(t, err)
	p, err := svc.Profile(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, "Campinas", p.PrimaryRegion)
}

func TestAdminListings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "driver-1")
	driver := register(t, svc, "driver-2")
	admin := register(t, svc, "admin-1")

	drivers, err := svc.Drivers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, drivers, 2)

	_, err = svc.Drivers(ctx, driver)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.AllShifts(ctx, driver, ShiftFilter{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog([]string{"São Paulo", "sao paulo", "Osasco", " "})
	assert.Equal(t, []string{"São Paulo", "Osasco"}, c.Names())
	name, ok := c.Canonical("SAO PAULO")
	assert.True(t, ok)
	assert.Equal(t, "São Paulo", name)
	_, ok = c.Canonical("Recife")
	assert.False(t, ok)

	open := NewCatalog(nil)
	name, ok = open.Canonical("Recife")
	assert.True(t, ok)
	assert.Equal(t, "Recife", name)
}
