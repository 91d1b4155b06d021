package loanrequests

import (
	"context"
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

	// 一括貸出申請
	r.POST("/loan-requests", auth.RequireCapability(auth.ActionRequestCreate), h.Create)
	r.GET("/loan-requests", auth.RequireCapability(auth.ActionRequestRead), h.List)
	r.GET("/loan-requests/:id", auth.RequireCapability(auth.ActionRequestRead), h.Get)
	r.PUT("/loan-requests/:id/equipment", auth.RequireCapability(auth.ActionRequestSetEquipment), h.SetEquipment)

	// 承認・却下・受取
	r.POST("/loan-requests/:id/approve", auth.RequireCapability(auth.ActionRequestApprove), h.Approve)
	r.POST("/loan-requests/:id/reject", auth.RequireCapability(auth.ActionRequestReject), h.Reject)
	r.POST("/loan-requests/:id/pickup", auth.RequireCapability(auth.ActionRequestConfirmPickup), h.ConfirmPickup)
}

func (h *Handler) Create(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	var req CreateRequest
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
	c.Header("Location", "/loan-requests/"+strconv.FormatUint(res.ID, 10))
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
	actor, _ := auth.ActorFrom(c)
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
	// 講師は自分の申請のみ
	if actor.Role == auth.RoleLecturer {
		f.RequesterID = &actor.ID
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

func (h *Handler) SetEquipment(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	var req SetEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.SetEquipment(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, h.svc.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, h.svc.Reject)
}

func (h *Handler) decide(c *gin.Context, fn func(context.Context, uint64, auth.Actor, string) (LoanRequestResponse, error)) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
			return
		}
	}
	actor, _ := auth.ActorFrom(c)
	res, err := fn(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ConfirmPickup(c *gin.Context) {
	id, ok := equipment.ParseID(c, "id")
	if !ok {
		return
	}
	actor, _ := auth.ActorFrom(c)
	res, err := h.svc.ConfirmPickup(c.Request.Context(), id, actor)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
