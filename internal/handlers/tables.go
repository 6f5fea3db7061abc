package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// CreateTable - POST /api/tables
func (h *Handlers) CreateTable(c *gin.Context) {
	var req models.TableRequest
	if !bindJSON(c, &req) {
		return
	}

	table, err := h.services.Tables.Create(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, table)
}

// ListTables - GET /api/tables?active=true
func (h *Handlers) ListTables(c *gin.Context) {
	list, err := h.services.Tables.List(c.Request.Context(), middleware.TenantID(c), c.Query("active") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// GetTable - GET /api/tables/:id
func (h *Handlers) GetTable(c *gin.Context) {
	table, err := h.services.Tables.Get(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, table)
}

// UpdateTable - PATCH /api/tables/:id
func (h *Handlers) UpdateTable(c *gin.Context) {
	var req models.TableUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	table, err := h.services.Tables.Update(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, table)
}

// ArchiveTable - DELETE /api/tables/:id
func (h *Handlers) ArchiveTable(c *gin.Context) {
	if err := h.services.Tables.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}

// Table products

// CreateTableProduct - POST /api/tables/:id/products
func (h *Handlers) CreateTableProduct(c *gin.Context) {
	var req models.TableProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.services.Tables.CreateProduct(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, product)
}

// ListTableProducts - GET /api/tables/:id/products
func (h *Handlers) ListTableProducts(c *gin.Context) {
	list, err := h.services.Tables.ListProducts(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// UpdateTableProduct - PATCH /api/table-products/:id
func (h *Handlers) UpdateTableProduct(c *gin.Context) {
	var req models.TableProductUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.services.Tables.UpdateProduct(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, product)
}

// ArchiveTableProduct - DELETE /api/table-products/:id
func (h *Handlers) ArchiveTableProduct(c *gin.Context) {
	if err := h.services.Tables.ArchiveProduct(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}
