package equipment

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	read := auth.RequireCapability(auth.ActionEquipmentRead)
	manage := auth.RequireCapability(auth.ActionEquipmentManage)

	r.POST("/equipment", manage, h.Create)
	r.GET("/equipment", read, h.List)
	r.GET("/equipment/labels.csv", read, h.ExportLabels)
	r.GET("/equipment/:id", read, h.Get)
	r.PUT("/equipment/:id/availability", manage, h.ChangeAvailability)
	r.DELETE("/equipment/:id", manage, h.Delete)
}

// Create godoc
// @Summary  Register an equipment unit
// @Tags     equipment
// @Param    body body CreateEquipmentRequest true "unit"
// @Success  201 {object} EquipmentResponse
// @Failure  409 {object} apperr.ErrorDTO
// @Router   /equipment [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.Header("Location", "/equipment/"+strconv.FormatUint(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
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
	if v := c.Query("availability"); v != "" {
		a := Availability(v)
		f.Availability = &a
	}
	if v := c.Query("type"); v != "" {
		f.Type = &v
	}
	if v := c.Query("q"); v != "" {
		f.Search = &v
	}
	p := Page{
		Limit:  ParseIntDefault(c.Query("limit"), 50),
		Offset: ParseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}
	res, err := h.svc.List(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ChangeAvailability(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}
	var req ChangeAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.ChangeAvailability(c.Request.Context(), id, req.Availability)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportLabels: ?ids=1,2,3&encoding=cp932
func (h *Handler) ExportLabels(c *gin.Context) {
	var ids []uint64
	for _, p := range strings.Split(c.Query("ids"), ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "ids must be numeric"))
			return
		}
		ids = append(ids, id)
	}
	enc := LabelEncoding(c.DefaultQuery("encoding", string(LabelUTF8)))
	body, err := h.svc.ExportLabels(c.Request.Context(), ids, enc)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.FromErr(err))
		return
	}
	charset := "utf-8"
	if enc == LabelCP932 {
		charset = "shift_jis"
	}
	c.Header("Content-Disposition", `attachment; filename="labels.csv"`)
	c.Data(http.StatusOK, "text/csv; charset="+charset, body)
}

// ---------- helpers (shared by the booking handlers) ----------

func ParseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

// ParseID reads a numeric path parameter, writing a 400 when it is malformed.
func ParseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}
