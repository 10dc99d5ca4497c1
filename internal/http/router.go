// README: HTTP route table.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"routedesk/internal/http/middleware"
	"routedesk/internal/metrics"
	"routedesk/internal/modules/account"
)

func (s *Server) register(r *gin.Engine) {
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	admin := api.Group("/admin")
	admin.POST("/routes/import", s.routes.Import)
	admin.GET("/routes", s.routes.List)
	admin.GET("/routes/:id", s.routes.Get)
	admin.DELETE("/routes/:id", s.routes.Delete)
	admin.POST("/routes/delete", s.routes.DeleteMany)
	admin.GET("/assignments/pending", s.assignments.Pending)
	admin.POST("/assignments/:id/approve", s.assignments.Approve)
	admin.POST("/assignments/:id/reject", s.assignments.Reject)
	admin.GET("/drivers", s.drivers.Drivers)
	admin.GET("/export/drivers", s.export.Drivers)

	driver := api.Group("/driver")
	driver.GET("/routes", s.routes.Available)
	driver.POST("/routes/:id/claim", s.assignments.Claim)
	driver.GET("/assignments", s.assignments.Mine)
	driver.GET("/profile", s.drivers.GetProfile)
	driver.PUT("/profile", s.drivers.PutProfile)
	driver.GET("/regions", s.drivers.GetRegions)
	driver.PUT("/regions", s.drivers.PutRegions)
	driver.POST("/verifications/identity", s.drivers.Verify(account.KindIdentity))
	driver.POST("/verifications/delivery-rate", s.drivers.Verify(account.KindDeliveryRate))
	driver.POST("/shifts", s.drivers.ScheduleShift)
	driver.GET("/shifts", s.drivers.Shifts)

	if s.feed != nil {
		api.GET("/feed/:topic", s.feed.Stream)
	}
}
