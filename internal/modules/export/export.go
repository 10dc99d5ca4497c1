// README: Driver report export as semicolon-separated UTF-8 CSV with BOM.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"routedesk/internal/modules/account"
	"routedesk/internal/types"
)

// Header is fixed; downstream spreadsheets match on it.
var Header = []string{
	"Nome",
	"Veículo",
	"Região principal",
	"Regiões reserva",
	"Identidade válida até",
	"Taxa de entrega (%)",
	"Taxa válida até",
	"Turnos",
}

const (
	bom        = "\ufeff"
	dateLayout = "02/01/2006"
)

type Source interface {
	Drivers(ctx context.Context, actor account.Actor) ([]*account.Profile, error)
	AllShifts(ctx context.Context, actor account.Actor, f account.ShiftFilter) ([]account.ShiftSelection, error)
}

type Filter struct {
	Region       string
	Shift        *types.Shift
	Date         *time.Time
	VerifiedOnly bool
}

// Row is one driver's line in the report.
type Row struct {
	Name              string
	VehicleType       string
	PrimaryRegion     string
	BackupRegions     []string
	IdentityUntil     *time.Time
	DeliveryRate      *float64
	DeliveryRateUntil *time.Time
	Shifts            []account.ShiftSelection
}

func (r Row) record() []string {
	rate := ""
	if r.DeliveryRate != nil {
		rate = strings.Replace(strconv.FormatFloat(*r.DeliveryRate, 'f', 1, 64), ".", ",", 1)
	}
	shifts := make([]string, 0, len(r.Shifts))
	for _, s := range r.Shifts {
		shifts = append(shifts, s.ServiceDate.Format(dateLayout)+" "+string(s.Shift))
	}
	return []string{
		r.Name,
		r.VehicleType,
		r.PrimaryRegion,
		strings.Join(r.BackupRegions, ", "),
		formatDate(r.IdentityUntil),
		rate,
		formatDate(r.DeliveryRateUntil),
		strings.Join(shifts, ", "),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

type Service struct {
	source Source
	now    func() time.Time
}

func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

// Rows builds the filtered report. Expired verifications are left blank.
func (s *Service) Rows(ctx context.Context, actor account.Actor, f Filter) ([]Row, error) {
	drivers, err := s.source.Drivers(ctx, actor)
	if err != nil {
		return nil, err
	}
	shifts, err := s.source.AllShifts(ctx, actor, account.ShiftFilter{Shift: f.Shift, Date: f.Date})
	if err != nil {
		return nil, err
	}
	byDriver := make(map[types.ID][]account.ShiftSelection)
	for _, sel := range shifts {
		byDriver[sel.DriverID] = append(byDriver[sel.DriverID], sel)
	}

	now := s.now()
	regionKey := types.RegionKey(f.Region)
	rows := make([]Row, 0, len(drivers))
	for _, p := range drivers {
		if regionKey != "" && !hasRegion(p, regionKey) {
			continue
		}
		if (f.Shift != nil || f.Date != nil) && len(byDriver[p.ID]) == 0 {
			continue
		}
		if f.VerifiedOnly && !p.CanSchedule(now) {
			continue
		}
		row := Row{
			Name:          p.Name,
			VehicleType:   p.VehicleType,
			PrimaryRegion: p.PrimaryRegion,
			BackupRegions: p.BackupRegions,
			Shifts:        byDriver[p.ID],
		}
		if p.Identity.ValidAt(now) {
			until := p.Identity.ExpiresAt
			row.IdentityUntil = &until
		}
		if p.DeliveryRate.ValidAt(now) {
			until := p.DeliveryRate.ExpiresAt
			row.DeliveryRateUntil = &until
			row.DeliveryRate = p.DeliveryRate.DeliveryRate
		}
		sort.Slice(row.Shifts, func(i, j int) bool {
			if !row.Shifts[i].ServiceDate.Equal(row.Shifts[j].ServiceDate) {
				return row.Shifts[i].ServiceDate.Before(row.Shifts[j].ServiceDate)
			}
			return row.Shifts[i].Shift < row.Shifts[j].Shift
		})
		rows = append(rows, row)
	}
	return rows, nil
}

func hasRegion(p *account.Profile, key string) bool {
	for _, r := range p.Regions() {
		if types.RegionKey(r) == key {
			return true
		}
	}
	return false
}

// Write emits the BOM, the header and one line per row.
func Write(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName names a report generated at t.
func FileName(t time.Time) string {
	return "motoristas-" + t.Format("20060102-1504") + ".csv"
}
