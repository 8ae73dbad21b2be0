package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"realtors/auth"
	"realtors/models"
	"realtors/services"
)

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if t := h.Catalog.LoadedAt(); !t.IsZero() {
		resp["catalogLoadedAt"] = t.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/properties?listingType=&location=&minPrice=&maxPrice=&propertyType=&zone=&zones=&beds=&baths=&minArea=&maxArea=
func (h *Handler) SearchProperties(c *gin.Context) {
	list, err := h.Catalog.Search(c.Request.Context(), parseCriteria(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "properties": list})
}

// GET /api/properties/:id
func (h *Handler) GetProperty(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.Props.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if p == nil || (p.Pending() && !auth.IsAdmin(ctx)) {
		respondError(c, services.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, p)
}

// POST /api/properties/submissions
func (h *Handler) SubmitProperty(c *gin.Context) {
	p, ok := bindProperty(c)
	if !ok {
		return
	}
	id, err := h.Props.Submit(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "approval": models.ApprovalPending})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	sess, token, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "session": sess})
}

// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/auth/session
func (h *Handler) CurrentSession(c *gin.Context) {
	sess := auth.FromContext(c.Request.Context())
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GET /api/admin/properties
func (h *Handler) ListAllProperties(c *gin.Context) {
	list, err := h.Props.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "properties": list})
}

// GET /api/admin/properties/export
func (h *Handler) ExportProperties(c *gin.Context) {
	list, err := h.Props.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := services.ExportXLSX(&buf, list); err != nil {
		log.Printf("Warning: export failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write Excel file"})
		return
	}

	filename := fmt.Sprintf("properties-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// POST /api/admin/properties
func (h *Handler) CreateProperty(c *gin.Context) {
	p, ok := bindProperty(c)
	if !ok {
		return
	}
	id, err := h.Props.Create(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// PATCH|PUT /api/admin/properties/:id
func (h *Handler) UpdateProperty(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object", "field": "body"})
		return
	}
	id := c.Param("id")
	if err := h.Props.Update(c.Request.Context(), id, fields); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DELETE /api/admin/properties/:id
func (h *Handler) DeleteProperty(c *gin.Context) {
	if err := h.Props.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/admin/properties/:id/approve
func (h *Handler) ApproveProperty(c *gin.Context) {
	id := c.Param("id")
	if err := h.Props.Approve(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "approval": models.ApprovalApproved})
}

// GET /api/admin/audit?limit=
func (h *Handler) RecentAudit(c *gin.Context) {
	if h.Audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log is kept in the listing store"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}
	entries, err := h.Audit.RecentAudit(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// bindProperty decodes a full property body, writing a 400 on failure.
func bindProperty(c *gin.Context) (models.Property, bool) {
	var p models.Property
	if err := c.ShouldBindJSON(&p); err != nil {
		field := "body"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property", "field": field})
		return p, false
	}
	p.ID = ""
	return p, true
}
