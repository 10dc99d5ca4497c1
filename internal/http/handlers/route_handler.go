// README: Route handlers for admin import/list/delete and the driver availability listing.
package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"routedesk/internal/modules/account"
	"routedesk/internal/modules/route"
	"routedesk/internal/types"
)

const maxSheetBytes = 20 << 20

type RouteService interface {
	ImportBatch(ctx context.Context, actor account.Actor, shift types.Shift, date time.Time, files []route.ImportFile) ([]route.ImportResult, error)
	Get(ctx context.Context, actor account.Actor, id types.ID) (*route.Route, error)
	List(ctx context.Context, actor account.Actor, f route.Filter) ([]*route.Route, error)
	ListAvailable(ctx context.Context, actor account.Actor, q route.AvailableQuery) ([]*route.Route, error)
	Delete(ctx context.Context, actor account.Actor, id types.ID) error
	DeleteMany(ctx context.Context, actor account.Actor, ids []types.ID) (int, error)
}

type RouteHandler struct {
	routes RouteService
}

func NewRouteHandler(svc RouteService) *RouteHandler {
	return &RouteHandler{routes: svc}
}

type importResultResp struct {
	File    string              `json:"file"`
	Outcome route.ImportOutcome `json:"outcome"`
	RouteID types.ID            `json:"route_id,omitempty"`
	Status  int                 `json:"status"`
	Error   string              `json:"error,omitempty"`
}

// Import accepts multipart files[] plus shift and date form values.
func (h *RouteHandler) Import(c *gin.Context) {
	shift, err := types.ParseShift(c.PostForm("shift"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	date, err := types.ParseDate(c.PostForm("date"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, http.StatusBadRequest, "expected multipart form")
		return
	}
	headers := append(form.File["files[]"], form.File["files"]...)
	if len(headers) == 0 {
		writeError(c, http.StatusBadRequest, "no files uploaded")
		return
	}
	files := make([]route.ImportFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh, maxSheetBytes)
		if err != nil {
			writeError(c, http.StatusBadRequest, fh.Filename+": "+err.Error())
			return
		}
		files = append(files, route.ImportFile{Name: fh.Filename, Data: data})
	}

	results, err := h.routes.ImportBatch(c.Request.Context(), actorOf(c), shift, date, files)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := make([]importResultResp, 0, len(results))
	for _, r := range results {
		item := importResultResp{File: r.File, Outcome: r.Outcome, Status: http.StatusCreated}
		if r.Route != nil {
			item.RouteID = r.Route.ID
		}
		if r.Err != nil {
			item.Status = statusOf(r.Err)
			item.Error = r.Err.Error()
		}
		resp = append(resp, item)
	}
	writeJSON(c, http.StatusOK, gin.H{"results": resp})
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, errTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

func (h *RouteHandler) List(c *gin.Context) {
	f := route.Filter{City: c.Query("city"), Limit: queryInt(c, "limit", 0)}
	var ok bool
	if f.Shift, ok = optionalShift(c, "shift"); !ok {
		return
	}
	if f.Date, ok = optionalDate(c, "date"); !ok {
		return
	}
	if v := c.Query("status"); v != "" {
		st, err := route.ParseStatus(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = &st
	}
	routes, err := h.routes.List(c.Request.Context(), actorOf(c), f)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"routes": withStatus(routes)})
}

// Get returns one route with its raw sheet rows.
func (h *RouteHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.routes.Get(c.Request.Context(), actorOf(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routeResp{Route: r, Status: r.Status()})
}

func (h *RouteHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.routes.Delete(c.Request.Context(), actorOf(c), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkDeleteReq struct {
	IDs []types.ID `json:"ids"`
}

func (h *RouteHandler) DeleteMany(c *gin.Context) {
	var req bulkDeleteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	for _, id := range req.IDs {
		if !id.Valid() {
			writeError(c, http.StatusBadRequest, "invalid id "+string(id))
			return
		}
	}
	n, err := h.routes.DeleteMany(c.Request.Context(), actorOf(c), req.IDs)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deleted": n})
}

// Available is the driver's gate listing.
func (h *RouteHandler) Available(c *gin.Context) {
	var q route.AvailableQuery
	var ok bool
	if q.Shift, ok = optionalShift(c, "shift"); !ok {
		return
	}
	if q.Date, ok = optionalDate(c, "date"); !ok {
		return
	}
	routes, err := h.routes.ListAvailable(c.Request.Context(), actorOf(c), q)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"routes": withStatus(routes)})
}

type routeResp struct {
	*route.Route
	Status route.Status `json:"status"`
}

func withStatus(routes []*route.Route) []routeResp {
	out := make([]routeResp, 0, len(routes))
	for _, r := range routes {
		out = append(out, routeResp{Route: r, Status: r.Status()})
	}
	return out
}
