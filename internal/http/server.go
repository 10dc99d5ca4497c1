// README: API gateway; owns the gin engine and delegates to module services.
package http

import (
	"github.com/gin-gonic/gin"

	"routedesk/internal/http/handlers"
	"routedesk/internal/infra"
	"routedesk/internal/modules/feed"
)

type ServerDeps struct {
	Verifier    infra.TokenVerifier
	Routes      handlers.RouteService
	Assignments handlers.AssignmentService
	Accounts    handlers.AccountService
	Quota       handlers.QuotaReader
	Export      handlers.ExportService
	Feed        feed.Subscriber
}

type Server struct {
	deps        ServerDeps
	routes      *handlers.RouteHandler
	assignments *handlers.AssignmentHandler
	drivers     *handlers.DriverHandler
	export      *handlers.ExportHandler
	feed        *handlers.FeedHandler
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:        deps,
		routes:      handlers.NewRouteHandler(deps.Routes),
		assignments: handlers.NewAssignmentHandler(deps.Assignments),
		drivers:     handlers.NewDriverHandler(deps.Accounts, deps.Quota),
		export:      handlers.NewExportHandler(deps.Export),
	}
	if deps.Feed != nil {
		s.feed = handlers.NewFeedHandler(deps.Feed)
	}
	return s
}

// Engine builds a gin engine with middleware and the route table.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	s.register(r)
	return r
}
