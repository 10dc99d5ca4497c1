package account

import (
	"context"
	"sort"
	"sync"

	"routedesk/internal/types"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[types.ID]*Profile
	shifts   map[string]ShiftSelection
}

func newMemStore() *memStore {
	return &memStore{profiles: map[types.ID]*Profile{}, shifts: map[string]ShiftSelection{}}
}

func (m *memStore) GetProfile(_ context.Context, id types.ID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpsertProfile(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.profiles[p.ID]; ok {
		if p.Name != "" {
			cur.Name = p.Name
		}
		if p.VehicleType != "" {
			cur.VehicleType = p.VehicleType
		}
		if p.DeviceToken != "" {
			cur.DeviceToken = p.DeviceToken
		}
		return nil
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) SetRole(_ context.Context, id types.ID, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	return nil
}

func (m *memStore) UpdateRegions(_ context.Context, id types.ID, cfg RegionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.PrimaryRegion = cfg.Primary
	p.BackupRegions = append([]string(nil), cfg.Backups...)
	return nil
}

func (m *memStore) SaveVerification(_ context.Context, id types.ID, v Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.setVerification(v)
	if v.Kind == KindIdentity && v.VehicleType != "" {
		p.VehicleType = v.VehicleType
	}
	return nil
}

func (m *memStore) ListDrivers(_ context.Context) ([]*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Profile
	for _, p := range m.profiles {
		if p.Role == RoleDriver {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) AddShift(_ context.Context, sel ShiftSelection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[string(sel.DriverID)+types.FormatDate(sel.ServiceDate)+string(sel.Shift)] = sel
	return nil
}

func (m *memStore) ListShifts(_ context.Context, f ShiftFilter) ([]ShiftSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ShiftSelection
	for _, s := range m.shifts {
		if f.DriverID != nil && s.DriverID != *f.DriverID {
			continue
		}
		if f.Shift != nil && s.Shift != *f.Shift {
			continue
		}
		if f.Date != nil && !s.ServiceDate.Equal(types.DateOf(*f.Date)) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type memCache struct {
	mu    sync.Mutex
	items map[types.ID]Profile
	hits  int
}

func newMemCache() *memCache { return &memCache{items: map[types.ID]Profile{}} }

func (c *memCache) Get(_ context.Context, id types.ID) (*Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &p, nil
}

func (c *memCache) Set(_ context.Context, p *Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = *p
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id types.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

type stubOracle struct {
	ext   *Extraction
	err   error
	calls int
}

func (o *stubOracle) Extract(context.Context, VerificationKind, []byte, string) (*Extraction, error) {
	o.calls++
	return o.ext, o.err
}

type stubQuota struct {
	err  error
	used []string
}

func (q *stubQuota) UseToken(_ context.Context, uid string) error {
	if q.err != nil {
		return q.err
	}
	q.used = append(q.used, uid)
	return nil
}
