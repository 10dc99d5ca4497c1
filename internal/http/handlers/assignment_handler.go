// README: Assignment handlers for claim, admin review and the driver's own list.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"routedesk/internal/modules/account"
	"routedesk/internal/modules/assignment"
	"routedesk/internal/types"
)

type AssignmentService interface {
	Claim(ctx context.Context, actor account.Actor, routeID types.ID) (*assignment.Assignment, error)
	Approve(ctx context.Context, actor account.Actor, id types.ID) (*assignment.Assignment, error)
	Reject(ctx context.Context, actor account.Actor, id types.ID) (*assignment.Assignment, error)
	Pending(ctx context.Context, actor account.Actor) ([]assignment.View, error)
	Mine(ctx context.Context, actor account.Actor) ([]assignment.View, error)
}

type AssignmentHandler struct {
	assignments AssignmentService
}

func NewAssignmentHandler(svc AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: svc}
}

func (h *AssignmentHandler) Claim(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assignments.Claim(c.Request.Context(), actorOf(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, a)
}

func (h *AssignmentHandler) Approve(c *gin.Context) {
	h.decide(c, h.assignments.Approve)
}

func (h *AssignmentHandler) Reject(c *gin.Context) {
	h.decide(c, h.assignments.Reject)
}

func (h *AssignmentHandler) decide(c *gin.Context, fn func(context.Context, account.Actor, types.ID) (*assignment.Assignment, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := fn(c.Request.Context(), actorOf(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) Pending(c *gin.Context) {
	views, err := h.assignments.Pending(c.Request.Context(), actorOf(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": views})
}

func (h *AssignmentHandler) Mine(c *gin.Context) {
	views, err := h.assignments.Mine(c.Request.Context(), actorOf(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": views})
}
