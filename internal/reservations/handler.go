package reservations

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 予約
	r.POST("/reservations", auth.RequireCapability(auth.ActionReservationCreate), h.Create)
	r.GET("/reservations", auth.RequireCapability(auth.ActionReservationRead), h.List)
	r.GET("/reservations/:id", auth.RequireCapability(auth.ActionReservationRead), h.Get)

	r.POST("/reservations/:id/confirm", auth.RequireCapability(auth.ActionReservationConfirm), h.Confirm)
	r.POST("/reservations/:id/cancel", auth.RequireCapability(auth.ActionReservationCancel), h.Cancel)
	r.POST("/reservations/:id/convert", auth.RequireCapability(auth.ActionReservationConvert), h.Convert)
}

func (h *Handler) Create(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	if req.RequesterID != nil && *req.RequesterID != "" && *req.RequesterID != actor.ID {
		if err := auth.Authorize(actor, auth.ActionLoanCreateForUser); err != nil {
			c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
			return
		}
	}
	res, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.Header("Location", "/reservations/"+strconv.FormatUint(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{}
	if v := c.Query("status"); v != "" {
		st := Status(v)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "unknown status"))
			return
		}
		f.Status = &st
	}
	if v := c.Query("requester_id"); v != "" {
		f.RequesterID = &v
	}
	if v := c.Query("equipment_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.EquipmentID = &id
		}
	}
	p := Page{
		Limit:  equipment.ParseIntDefault(c.Query("limit"), 50),
		Offset: equipment.ParseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}
	res, err := h.svc.List(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	actor, _ := auth.ActorFrom(c)
	res, err := h.svc.Confirm(c.Request.Context(), id, actor)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	actor, _ := auth.ActorFrom(c)

	// 他人の予約の取消は職員のみ
	cur, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	if cur.RequesterID != actor.ID && cur.CreatedBy != actor.ID {
		if err := auth.Authorize(actor, auth.ActionReservationCancelAny); err != nil {
			c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
			return
		}
	}

	res, err := h.svc.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Convert(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	actor, _ := auth.ActorFrom(c)
	res, err := h.svc.ConvertToLoan(c.Request.Context(), id, actor, req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}
