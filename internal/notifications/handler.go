package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 通知 (本人分のみ)
	r.GET("/notifications", auth.RequireCapability(auth.ActionNotificationRead), h.List)
	r.GET("/notifications/unread-count", auth.RequireCapability(auth.ActionNotificationRead), h.UnreadCount)
	r.POST("/notifications/read-all", auth.RequireCapability(auth.ActionNotificationRead), h.MarkAllRead)
	r.POST("/notifications/:id/read", auth.RequireCapability(auth.ActionNotificationRead), h.MarkRead)
}

func (h *Handler) List(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	unread := c.Query("unread") == "true" || c.Query("unread") == "1"
	res, err := h.svc.ListForRecipient(c.Request.Context(), actor.ID, unread,
		equipment.ParseIntDefault(c.Query("limit"), 50),
		equipment.ParseIntDefault(c.Query("offset"), 0))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	n, err := h.svc.UnreadCount(c.Request.Context(), actor.ID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	actor, _ := auth.ActorFrom(c)
	if err := h.svc.MarkRead(c.Request.Context(), id, actor.ID); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	n, err := h.svc.MarkAllRead(c.Request.Context(), actor.ID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
