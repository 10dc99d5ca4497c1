// README: Driver self-service handlers: profile, regions, verifications and shifts.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"routedesk/internal/modules/account"
	"routedesk/internal/types"
)

const maxImageBytes = 10 << 20

type AccountService interface {
	Catalog() *account.Catalog
	Register(ctx context.Context, actor account.Actor, cmd account.RegisterCommand) (*account.Profile, error)
	Profile(ctx context.Context, id types.ID) (*account.Profile, error)
	SetRegions(ctx context.Context, actor account.Actor, cfg account.RegionConfig) (*account.Profile, error)
	Verify(ctx context.Context, actor account.Actor, kind account.VerificationKind, image []byte, mimeType string) (*account.Verification, error)
	ScheduleShift(ctx context.Context, actor account.Actor, date time.Time, shift types.Shift) (*account.ShiftSelection, error)
	Shifts(ctx context.Context, actor account.Actor) ([]account.ShiftSelection, error)
	Drivers(ctx context.Context, actor account.Actor) ([]*account.Profile, error)
}

// QuotaReader reports how many document extractions a caller has left this month.
type QuotaReader interface {
	Remaining(ctx context.Context, uid string) (int, error)
}

type DriverHandler struct {
	accounts AccountService
	quota    QuotaReader
	now      func() time.Time
}

// NewDriverHandler wires the driver endpoints. quota may be nil.
func NewDriverHandler(svc AccountService, quota QuotaReader) *DriverHandler {
	return &DriverHandler{accounts: svc, quota: quota, now: time.Now}
}

type profileResp struct {
	*account.Profile
	CanSchedule       bool `json:"can_schedule"`
	VerificationsLeft *int `json:"verifications_left,omitempty"`
}

func (h *DriverHandler) GetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.accounts.Profile(ctx, actorOf(c).ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := profileResp{Profile: p, CanSchedule: p.CanSchedule(h.now())}
	if h.quota != nil {
		left, err := h.quota.Remaining(ctx, string(p.ID))
		if err != nil {
			log.WithField("uid", p.ID).Warnf("quota lookup: %v", err)
		} else {
			resp.VerificationsLeft = &left
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

type profileReq struct {
	Name        string `json:"name"`
	VehicleType string `json:"vehicle_type"`
	DeviceToken string `json:"device_token"`
}

// PutProfile creates the caller's profile on first use and updates it after.
func (h *DriverHandler) PutProfile(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.accounts.Register(c.Request.Context(), actorOf(c), account.RegisterCommand{
		Name:        req.Name,
		VehicleType: req.VehicleType,
		DeviceToken: req.DeviceToken,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, profileResp{Profile: p, CanSchedule: p.CanSchedule(h.now())})
}

type regionsResp struct {
	Primary   string   `json:"primary"`
	Backups   []string `json:"backups"`
	Available []string `json:"available"`
}

func (h *DriverHandler) GetRegions(c *gin.Context) {
	p, err := h.accounts.Profile(c.Request.Context(), actorOf(c).ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, regionsResp{
		Primary:   p.PrimaryRegion,
		Backups:   nonNil(p.BackupRegions),
		Available: nonNil(h.accounts.Catalog().Names()),
	})
}

type regionsReq struct {
	Primary string   `json:"primary"`
	Backups []string `json:"backups"`
}

func (h *DriverHandler) PutRegions(c *gin.Context) {
	var req regionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.accounts.SetRegions(c.Request.Context(), actorOf(c), account.RegionConfig{
		Primary: req.Primary,
		Backups: req.Backups,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, regionsResp{
		Primary:   p.PrimaryRegion,
		Backups:   nonNil(p.BackupRegions),
		Available: nonNil(h.accounts.Catalog().Names()),
	})
}

// Verify takes the document photo from the multipart "image" field.
func (h *DriverHandler) Verify(kind account.VerificationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("image")
		if err != nil {
			writeError(c, http.StatusBadRequest, "missing image")
			return
		}
		data, err := readUpload(fh, maxImageBytes)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		mime := fh.Header.Get("Content-Type")
		if mime == "" || !strings.HasPrefix(mime, "image/") {
			mime = http.DetectContentType(data)
		}
		v, err := h.accounts.Verify(c.Request.Context(), actorOf(c), kind, data, mime)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		writeJSON(c, http.StatusCreated, v)
	}
}

type shiftReq struct {
	Date  string `json:"date"`
	Shift string `json:"shift"`
}

func (h *DriverHandler) ScheduleShift(c *gin.Context) {
	var req shiftReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	date, err := types.ParseDate(req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		return
	}
	shift, err := types.ParseShift(req.Shift)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	sel, err := h.accounts.ScheduleShift(c.Request.Context(), actorOf(c), date, shift)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, sel)
}

func (h *DriverHandler) Shifts(c *gin.Context) {
	shifts, err := h.accounts.Shifts(c.Request.Context(), actorOf(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"shifts": nonNil(shifts)})
}

// Drivers is the admin roster.
func (h *DriverHandler) Drivers(c *gin.Context) {
	drivers, err := h.accounts.Drivers(c.Request.Context(), actorOf(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": nonNil(drivers)})
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
