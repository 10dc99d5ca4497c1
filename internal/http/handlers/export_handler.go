// README: CSV export of the driver roster for admins.
package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"routedesk/internal/modules/account"
	"routedesk/internal/modules/export"
)

type ExportService interface {
	Rows(ctx context.Context, actor account.Actor, f export.Filter) ([]export.Row, error)
}

type ExportHandler struct {
	export ExportService
	now    func() time.Time
}

func NewExportHandler(svc ExportService) *ExportHandler {
	return &ExportHandler{export: svc, now: time.Now}
}

func (h *ExportHandler) Drivers(c *gin.Context) {
	f := export.Filter{Region: c.Query("region"), VerifiedOnly: c.Query("verified") == "true"}
	var ok bool
	if f.Shift, ok = optionalShift(c, "shift"); !ok {
		return
	}
	if f.Date, ok = optionalDate(c, "date"); !ok {
		return
	}
	rows, err := h.export.Rows(c.Request.Context(), actorOf(c), f)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, rows); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(h.now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
