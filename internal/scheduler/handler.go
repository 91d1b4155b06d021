package scheduler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
)

type Handler struct {
	s           *Scheduler
	hoursBefore int
	mu          sync.Mutex
}

// RegisterRoutes exposes a manual trigger. Runs never overlap within one process.
func RegisterRoutes(r gin.IRoutes, s *Scheduler, hoursBefore int) {
	h := &Handler{s: s, hoursBefore: hoursBefore}
	r.POST("/scheduler/run", auth.RequireCapability(auth.ActionSchedulerRun), h.Run)
}

func (h *Handler) Run(c *gin.Context) {
	if !h.mu.TryLock() {
		c.JSON(http.StatusConflict, apperr.Body(apperr.CodeConflict, "a scheduler run is already in progress"))
		return
	}
	defer h.mu.Unlock()

	hours := equipment.ParseIntDefault(c.Query("hours_before"), h.hoursBefore)
	c.JSON(http.StatusOK, h.s.RunAll(c.Request.Context(), hours))
}
