// README: Route service: spreadsheet import with duplicate guard, listings, region gate and deletion.
package route

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"routedesk/internal/metrics"
	"routedesk/internal/modules/account"
	"routedesk/internal/modules/feed"
	"routedesk/internal/modules/notify"
	"routedesk/internal/modules/sheet"
	"routedesk/internal/types"
)

// Repository is the persistence surface the service needs; *Store implements it.
type Repository interface {
	Insert(ctx context.Context, r *Route) error
	FindDuplicate(ctx context.Context, name string, shift types.Shift, date time.Time) (*Route, error)
	Get(ctx context.Context, id types.ID) (*Route, error)
	List(ctx context.Context, f Filter) ([]*Route, error)
	ListAvailable(ctx context.Context, cityKeys []string, q AvailableQuery) ([]*Route, error)
	Delete(ctx context.Context, id types.ID) error
	DeleteMany(ctx context.Context, ids []types.ID) ([]types.ID, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, actor account.Actor, roles ...account.Role) (*account.Profile, error)
}

type Service struct {
	store    Repository
	auth     Authorizer
	notifier notify.Notifier
	feed     feed.Publisher
	now      func() time.Time
	identity identityLocks
}

// identityLocks serializes the duplicate check and insert of imports sharing
// a (name, shift, date) identity within this process. The unique index
// covers imports from other processes.
type identityLocks [64]sync.Mutex

func (l *identityLocks) lock(name string, shift types.Shift, date time.Time) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + "|" + string(shift) + "|" + types.FormatDate(date)))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}

func NewService(store Repository, auth Authorizer, notifier notify.Notifier, pub feed.Publisher) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if pub == nil {
		pub = feed.Discard{}
	}
	return &Service{store: store, auth: auth, notifier: notifier, feed: pub, now: time.Now}
}

type ImportFile struct {
	Name string
	Data []byte
}

type ImportCommand struct {
	File  ImportFile
	Shift types.Shift
	Date  time.Time
}

type ImportOutcome string

const (
	OutcomeImported  ImportOutcome = "imported"
	OutcomeDuplicate ImportOutcome = "duplicate"
	OutcomeInvalid   ImportOutcome = "invalid"
	OutcomeFailed    ImportOutcome = "failed"
)

// ImportResult is the per-file report of a batch import.
type ImportResult struct {
	File    string
	Outcome ImportOutcome
	Route   *Route
	Err     error
}

func outcomeOf(err error) ImportOutcome {
	var dup *DuplicateRouteError
	var perr *sheet.ParseError
	switch {
	case err == nil:
		return OutcomeImported
	case errors.As(err, &dup):
		return OutcomeDuplicate
	case errors.As(err, &perr), errors.Is(err, sheet.ErrUnsupportedFile), errors.Is(err, ErrBadRequest):
		return OutcomeInvalid
	default:
		return OutcomeFailed
	}
}

// Import parses one spreadsheet and stores it as an available route unless a
// route with the same name, shift and date already exists.
func (s *Service) Import(ctx context.Context, actor account.Actor, cmd ImportCommand) (*Route, error) {
	if _, err := s.auth.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return nil, err
	}
	return s.importOne(ctx, cmd)
}

// ImportBatch imports files concurrently. One file failing never affects the
// others; results keep the input order.
func (s *Service) ImportBatch(ctx context.Context, actor account.Actor, shift types.Shift, date time.Time, files []ImportFile) ([]ImportResult, error) {
	if _, err := s.auth.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrBadRequest
	}
	results := make([]ImportResult, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f ImportFile) {
			defer wg.Done()
			r, err := s.importOne(ctx, ImportCommand{File: f, Shift: shift, Date: date})
			results[i] = ImportResult{File: f.Name, Outcome: outcomeOf(err), Route: r, Err: err}
		}(i, f)
	}
	wg.Wait()
	return results, nil
}

func (s *Service) importOne(ctx context.Context, cmd ImportCommand) (*Route, error) {
	r, err := s.buildRoute(cmd)
	if err == nil {
		err = s.insertUnique(ctx, r)
	}
	outcome := outcomeOf(err)
	metrics.ImportsTotal.WithLabelValues(string(outcome)).Inc()
	logger := log.WithFields(log.Fields{"file": cmd.File.Name, "shift": cmd.Shift, "date": types.FormatDate(cmd.Date), "outcome": outcome})

	var dup *DuplicateRouteError
	switch {
	case err == nil:
		logger.WithField("route_id", r.ID).Info("route imported")
		s.notifier.Notify(notify.RouteImported(r.ID, r.Name))
		s.publish(ctx, "imported", r.ID)
		return r, nil
	case errors.As(err, &dup):
		logger.WithField("existing_id", dup.ExistingID).Info("duplicate route rejected")
		s.notifier.Notify(notify.ImportRejected(dup.Name, dup.ExistingID))
	default:
		logger.Warnf("route import failed: %v", err)
		s.notifier.Notify(notify.ImportFailed(cmd.File.Name, err))
	}
	return nil, err
}

func (s *Service) buildRoute(cmd ImportCommand) (*Route, error) {
	if !cmd.Shift.IsValid() || cmd.Date.IsZero() || strings.TrimSpace(cmd.File.Name) == "" {
		return nil, ErrBadRequest
	}
	draft, err := sheet.Parse(cmd.File.Name, cmd.File.Data)
	if err != nil {
		return nil, err
	}
	name := draft.Name
	if name == "" {
		name = sheet.BaseName(cmd.File.Name)
	}

	sum := sha256.Sum256(cmd.File.Data)
	return &Route{
		ID:            types.NewID(),
		Name:          name,
		City:          draft.City,
		Neighborhoods: draft.Neighborhoods,
		TotalDistance: draft.TotalDistance,
		Sequence:      draft.Sequence,
		Shift:         cmd.Shift,
		ServiceDate:   types.DateOf(cmd.Date),
		CreatedAt:     s.now(),
		RawRows:       draft.RawRows,
		ContentHash:   hex.EncodeToString(sum[:]),
	}, nil
}

// insertUnique stores r unless a route with its identity already exists.
func (s *Service) insertUnique(ctx context.Context, r *Route) error {
	unlock := s.identity.lock(r.Name, r.Shift, r.ServiceDate)
	defer unlock()

	existing, err := s.store.FindDuplicate(ctx, r.Name, r.Shift, r.ServiceDate)
	if err != nil {
		return err
	}
	if existing != nil {
		return &DuplicateRouteError{Name: r.Name, Shift: r.Shift, Date: r.ServiceDate, ExistingID: existing.ID}
	}
	return s.store.Insert(ctx, r)
}

func (s *Service) Get(ctx context.Context, actor account.Actor, id types.ID) (*Route, error) {
	if _, err := s.auth.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, actor account.Actor, f Filter) ([]*Route, error) {
	if _, err := s.auth.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

// ListAvailable is the driver view: open routes in the driver's regions,
// newest first. A driver without regions sees nothing.
func (s *Service) ListAvailable(ctx context.Context, actor account.Actor, q AvailableQuery) ([]*Route, error) {
	p, err := s.auth.Authorize(ctx, actor, account.RoleDriver)
	if err != nil {
		return nil, err
	}
	keys := types.RegionKeys(p.Regions())
	if len(keys) == 0 {
		return []*Route{}, nil
	}
	return s.store.ListAvailable(ctx, keys, q)
}

func (s *Service) Delete(ctx context.Context, actor account.Actor, id types.ID) error {
	if _, err := s.auth.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.deleted(ctx, []types.ID{id})
	return nil
}

// DeleteMany removes every listed route that exists and returns how many
// were deleted.
func (s *Service) DeleteMany(ctx context.Context, actor account.Actor, ids []types.ID) (int, error) {
	if _, err := s.auth.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return 0, err
	}
	uniq := make([]types.ID, 0, len(ids))
	seen := make(map[types.ID]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return 0, ErrBadRequest
	}
	deleted, err := s.store.DeleteMany(ctx, uniq)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.deleted(ctx, deleted)
	}
	return len(deleted), nil
}

func (s *Service) deleted(ctx context.Context, ids []types.ID) {
	metrics.RoutesDeletedTotal.Add(float64(len(ids)))
	log.WithField("count", len(ids)).Info("routes deleted")
	s.notifier.Notify(notify.RoutesDeleted(ids))
	s.publish(ctx, "deleted", ids...)
}

func (s *Service) publish(ctx context.Context, kind string, ids ...types.ID) {
	err := s.feed.Publish(ctx, feed.Change{Topic: feed.TopicRoutes, Kind: kind, IDs: ids, At: s.now()})
	if err != nil {
		log.WithField("kind", kind).Warnf("feed publish failed: %v", err)
	}
}
