// README: Claim/approve/reject state machine over routes and assignments.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"

	"routedesk/internal/metrics"
	"routedesk/internal/modules/account"
	"routedesk/internal/modules/feed"
	"routedesk/internal/modules/notify"
	"routedesk/internal/modules/route"
	"routedesk/internal/types"
)

// Repository is the persistence surface the service needs; *Store implements it.
type Repository interface {
	Claim(ctx context.Context, a *Assignment) error
	Decide(ctx context.Context, d Decision) (*Assignment, error)
	Get(ctx context.Context, id types.ID) (*Assignment, error)
	ListPending(ctx context.Context) ([]View, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]View, error)
}

type Routes interface {
	Get(ctx context.Context, id types.ID) (*route.Route, error)
}

type Accounts interface {
	Authorize(ctx context.Context, actor account.Actor, roles ...account.Role) (*account.Profile, error)
	Profile(ctx context.Context, id types.ID) (*account.Profile, error)
}

type Service struct {
	store    Repository
	routes   Routes
	accounts Accounts
	notifier notify.Notifier
	feed     feed.Publisher
	now      func() time.Time
}

func NewService(store Repository, routes Routes, accounts Accounts, notifier notify.Notifier, pub feed.Publisher) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if pub == nil {
		pub = feed.Discard{}
	}
	return &Service{store: store, routes: routes, accounts: accounts, notifier: notifier, feed: pub, now: time.Now}
}

// Claim requests an available route in one of the driver's regions. Of
// several concurrent claims on the same route exactly one succeeds.
func (s *Service) Claim(ctx context.Context, actor account.Actor, routeID types.ID) (*Assignment, error) {
	a, err := s.claim(ctx, actor, routeID)
	metrics.ClaimsTotal.WithLabelValues(claimOutcome(err)).Inc()
	return a, err
}

func (s *Service) claim(ctx context.Context, actor account.Actor, routeID types.ID) (*Assignment, error) {
	p, err := s.accounts.Authorize(ctx, actor, account.RoleDriver)
	if err != nil {
		return nil, err
	}
	r, err := s.routes.Get(ctx, routeID)
	if errors.Is(err, route.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !r.Available() {
		return nil, ErrRouteNotAvailable
	}
	if !route.Visible(r, p.Regions()) {
		return nil, ErrOutsideRegion
	}

	now := s.now()
	a := &Assignment{
		ID:        types.NewID(),
		RouteID:   routeID,
		DriverID:  actor.ID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Claim(ctx, a); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"assignment_id": a.ID, "route_id": routeID, "driver_id": actor.ID}).Info("route claimed")
	s.notifier.Notify(notify.RouteClaimed(routeID, r.Name, p.Name))
	s.publish(ctx, "claimed", a.ID, routeID)
	return a, nil
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return "claimed"
	case errors.Is(err, ErrRouteNotAvailable):
		return "not_available"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOutsideRegion), errors.Is(err, account.ErrUnauthorized):
		return "denied"
	default:
		return "failed"
	}
}

// Approve assigns the route to the claiming driver.
func (s *Service) Approve(ctx context.Context, actor account.Actor, id types.ID) (*Assignment, error) {
	return s.decide(ctx, actor, id, StatusApproved)
}

// Reject returns the route to available.
func (s *Service) Reject(ctx context.Context, actor account.Actor, id types.ID) (*Assignment, error) {
	return s.decide(ctx, actor, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, actor account.Actor, id types.ID, to Status) (*Assignment, error) {
	a, err := s.decideOnce(ctx, actor, id, to)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.DecisionsTotal.WithLabelValues(string(to), outcome).Inc()
	return a, err
}

func (s *Service) decideOnce(ctx context.Context, actor account.Actor, id types.ID, to Status) (*Assignment, error) {
	if _, err := s.accounts.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return nil, err
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, to) {
		return nil, ErrInvalidState
	}
	r, err := s.routes.Get(ctx, cur.RouteID)
	if errors.Is(err, route.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d := Decision{AssignmentID: id, To: to, DecidedBy: actor.ID, At: s.now()}
	if to == StatusApproved {
		driver, err := s.accounts.Profile(ctx, cur.DriverID)
		if err != nil && !errors.Is(err, account.ErrNotFound) {
			return nil, err
		}
		if driver != nil {
			d.DriverName = driver.Name
			d.VehicleType = driver.VehicleType
		}
	}

	a, err := s.store.Decide(ctx, d)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"assignment_id": id, "route_id": a.RouteID, "status": to, "admin": actor.ID}).Info("claim decided")
	if to == StatusApproved {
		s.notifier.Notify(notify.ClaimApproved(a.DriverID, a.RouteID, r.Name))
	} else {
		s.notifier.Notify(notify.ClaimRejected(a.DriverID, a.RouteID, r.Name))
	}
	s.publish(ctx, string(to), a.ID, a.RouteID)
	return a, nil
}

func (s *Service) Pending(ctx context.Context, actor account.Actor) ([]View, error) {
	if _, err := s.accounts.Authorize(ctx, actor, account.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListPending(ctx)
}

// Mine lists the calling driver's assignments, newest first.
func (s *Service) Mine(ctx context.Context, actor account.Actor) ([]View, error) {
	if _, err := s.accounts.Authorize(ctx, actor, account.RoleDriver); err != nil {
		return nil, err
	}
	return s.store.ListByDriver(ctx, actor.ID)
}

func (s *Service) publish(ctx context.Context, kind string, assignmentID, routeID types.ID) {
	now := s.now()
	for _, c := range []feed.Change{
		{Topic: feed.TopicAssignments, Kind: kind, IDs: []types.ID{assignmentID}, At: now},
		{Topic: feed.TopicRoutes, Kind: kind, IDs: []types.ID{routeID}, At: now},
	} {
		if err := s.feed.Publish(ctx, c); err != nil {
			log.WithField("kind", kind).Warnf("feed publish failed: %v", err)
		}
	}
}
