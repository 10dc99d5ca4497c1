//go:build container

// README: End-to-end import, claim race and review flow against a throwaway PostgreSQL container.
package assignment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xuri/excelize/v2"

	"routedesk/internal/modules/account"
	"routedesk/internal/modules/route"
	"routedesk/internal/storeutil"
	"routedesk/internal/storeutil/storetest"
	"routedesk/internal/types"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "routedesk",
				"POSTGRES_PASSWORD": "routedesk",
				"POSTGRES_DB":       "routedesk",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://routedesk:routedesk@%s:%s/routedesk?sslmode=disable", host, port.Port())
}

func routeSheet(t *testing.T, name, address string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	head := make([]interface{}, 16)
	for i := range head {
		head[i] = fmt.Sprintf("H%d", i)
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &head))
	for i := 0; i < 3; i++ {
		cells := make([]interface{}, 16)
		cells[0] = fmt.Sprint(i + 1)
		cells[3] = "12,5 km"
		cells[6] = address
		cells[14] = name
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+2), &cells))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestContainerImportClaimReview(t *testing.T) {
	db := storetest.OpenDSN(t, startPostgres(t), "route_assignments", "routes", "driver_shifts", "verifications", "profiles")
	ctx := context.Background()
	retry := storeutil.NewRetrier(3, 50*time.Millisecond)

	accounts := account.NewService(account.NewStore(db, retry), account.WithAdmins("admin-1"))
	admin := account.Actor{ID: "admin-1"}
	_, err := accounts.Register(ctx, admin, account.RegisterCommand{Name: "Admin"})
	require.NoError(t, err)

	const drivers = 6
	for i := 0; i < drivers; i++ {
		d := account.Actor{ID: types.ID(fmt.Sprintf("driver-%d", i))}
		_, err := accounts.Register(ctx, d, account.RegisterCommand{Name: fmt.Sprintf("Driver %d", i), VehicleType: "moto"})
		require.NoError(t, err)
		_, err = accounts.SetRegions(ctx, d, account.RegionConfig{Primary: "Osasco"})
		require.NoError(t, err)
	}

	routeStore := route.NewStore(db, retry)
	routes := route.NewService(routeStore, accounts, nil, nil)
	date := types.DateOf(time.Now().AddDate(0, 0, 1))
	results, err := routes.ImportBatch(ctx, admin, types.ShiftAM, date, []route.ImportFile{
		{Name: "OS-01.xlsx", Data: routeSheet(t, "OS-01", "Rua X, Centro, Osasco")},
		{Name: "notes.txt", Data: []byte("hello")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, route.OutcomeImported, results[0].Outcome)
	assert.Equal(t, route.OutcomeInvalid, results[1].Outcome)

	_, err = routes.Import(ctx, admin, route.ImportCommand{
		File:  route.ImportFile{Name: "OS-01-copy.xlsx", Data: routeSheet(t, "OS-01", "Rua X, Centro, Osasco")},
		Shift: types.ShiftAM,
		Date:  date,
	})
	var dup *route.DuplicateRouteError
	assert.ErrorAs(t, err, &dup)

	visible, err := routes.ListAvailable(ctx, account.Actor{ID: "driver-0"}, route.AvailableQuery{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	routeID := visible[0].ID
	assert.Equal(t, 12.5, visible[0].TotalDistance)

	svc := NewService(NewStore(db, retry), routeStore, accounts, nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winner *Assignment
	failures := 0
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := svc.Claim(ctx, account.Actor{ID: types.ID(fmt.Sprintf("driver-%d", i))}, routeID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrRouteNotAvailable)
				failures++
				return
			}
			winner = a
		}(i)
	}
	wg.Wait()
	require.NotNil(t, winner)
	assert.Equal(t, drivers-1, failures)

	pending, err := svc.Pending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "OS-01", pending[0].RouteName)

	_, err = svc.Reject(ctx, admin, winner.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, winner.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	again, err := svc.Claim(ctx, account.Actor{ID: "driver-5"}, routeID)
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, admin, again.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	r, err := routeStore.Get(ctx, routeID)
	require.NoError(t, err)
	assert.Equal(t, route.StatusAssigned, r.Status())
	require.NotNil(t, r.AssignedDriverName)
	assert.Equal(t, "Driver 5", *r.AssignedDriverName)

	n, err := routes.DeleteMany(ctx, admin, []types.ID{routeID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	mine, err := svc.Mine(ctx, account.Actor{ID: "driver-5"})
	require.NoError(t, err)
	assert.Empty(t, mine)
}
