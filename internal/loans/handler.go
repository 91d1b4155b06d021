package loans

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

	// 貸出
	r.POST("/loans", auth.RequireCapability(auth.ActionLoanCreate), h.Create)
	r.GET("/loans", auth.RequireCapability(auth.ActionLoanRead), h.List)
	r.GET("/loans/:key", auth.RequireCapability(auth.ActionLoanRead), h.Get)

	// 状態遷移
	r.POST("/loans/:key/pickup", auth.RequireCapability(auth.ActionLoanConfirmPickup), h.ConfirmPickup)
	r.POST("/loans/:key/return", auth.RequireCapability(auth.ActionLoanReturn), h.Return)
	r.POST("/loans/:key/cancel", auth.RequireCapability(auth.ActionLoanCancel), h.Cancel)
}

// ---------- handlers ----------

func (h *Handler) Create(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	// 他人名義の貸出は職員のみ
	if req.BorrowerID != nil && *req.BorrowerID != "" && *req.BorrowerID != actor.ID {
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
	c.Header("Location", "/loans/"+res.ULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.GetByKey(c.Request.Context(), c.Param("key"))
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
	if v := c.Query("borrower_id"); v != "" {
		f.BorrowerID = &v
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

func (h *Handler) ConfirmPickup(c *gin.Context) {
	id, ok := h.resolve(c)
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

func (h *Handler) Return(c *gin.Context) {
	id, ok := h.resolve(c)
	if !ok {
		return
	}
	var req ReturnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
			return
		}
	}
	actor, _ := auth.ActorFrom(c)
	res, err := h.svc.Return(c.Request.Context(), id, actor, req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.resolve(c)
	if !ok {
		return
	}
	actor, _ := auth.ActorFrom(c)
	res, err := h.svc.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// resolve maps the :key path parameter (id or ULID) to the numeric id.
func (h *Handler) resolve(c *gin.Context) (uint64, bool) {
	res, err := h.svc.GetByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return 0, false
	}
	return res.ID, true
}
