// README: Base handler utilities (JSON helpers, caller actor, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"routedesk/internal/http/middleware"
	"routedesk/internal/modules/account"
	"routedesk/internal/modules/aiusage"
	"routedesk/internal/modules/assignment"
	"routedesk/internal/modules/feed"
	"routedesk/internal/modules/route"
	"routedesk/internal/modules/sheet"
	"routedesk/internal/storeutil"
	"routedesk/internal/types"
)

var errTooLarge = errors.New("file too large")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func actorOf(c *gin.Context) account.Actor {
	return account.Actor{ID: types.ID(middleware.CallerUID(c))}
}

// statusOf maps domain errors to HTTP status codes. Unknown errors are 500.
func statusOf(err error) int {
	var dup *route.DuplicateRouteError
	var perr *sheet.ParseError
	var serr *storeutil.PersistenceError
	switch {
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.As(err, &perr), errors.Is(err, sheet.ErrUnsupportedFile):
		return http.StatusUnprocessableEntity
	case errors.As(err, &serr):
		return http.StatusInternalServerError
	case errors.Is(err, account.ErrUnauthorized), errors.Is(err, assignment.ErrOutsideRegion):
		return http.StatusForbidden
	case errors.Is(err, account.ErrNotFound), errors.Is(err, route.ErrNotFound), errors.Is(err, assignment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assignment.ErrRouteNotAvailable), errors.Is(err, assignment.ErrInvalidState),
		errors.Is(err, account.ErrVerificationRequired):
		return http.StatusConflict
	case errors.Is(err, account.ErrBadRequest), errors.Is(err, route.ErrBadRequest),
		errors.Is(err, account.ErrInvalidRegion), errors.Is(err, account.ErrTooManyBackupRegions),
		errors.Is(err, feed.ErrUnknownTopic):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrVerificationRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, aiusage.ErrInsufficientTokens):
		return http.StatusTooManyRequests
	case errors.Is(err, account.ErrOracleUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeDomainError writes the mapped status. Store failures keep their
// message so operators can see which operation failed.
func writeDomainError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	var serr *storeutil.PersistenceError
	if status == http.StatusInternalServerError && !errors.As(err, &serr) {
		msg = "internal error"
	}
	if status >= 500 {
		log.WithFields(log.Fields{"path": c.FullPath(), "caller": middleware.CallerUID(c)}).Errorf("request failed: %v", err)
	}
	writeError(c, status, msg)
}

func optionalDate(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	d, err := types.ParseDate(v)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid "+key+": expected YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}

func optionalShift(c *gin.Context, key string) (*types.Shift, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	s, err := types.ParseShift(v)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &s, true
}

func pathID(c *gin.Context) (types.ID, bool) {
	id := types.ID(c.Param("id"))
	if !id.Valid() {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil && n > 0 {
		return n
	}
	return def
}
