package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nightpass/internal/models"
)

// LookupPerson - GET /api/persons/dni/:dni
func (h *Handlers) LookupPerson(c *gin.Context) {
	p, err := h.services.Persons.Lookup(c.Request.Context(), c.Param("dni"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// LookupPublicPerson - GET /api/public/:tenant/persons/:dni
func (h *Handlers) LookupPublicPerson(c *gin.Context) {
	p, err := h.services.Persons.Lookup(c.Request.Context(), c.Param("dni"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, p.Public())
}

// ListPersons - GET /api/persons?search=&page=&pageSize=
func (h *Handlers) ListPersons(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Persons.List(c.Request.Context(), models.PersonFilter{
		Query:      strings.TrimSpace(c.Query("search")),
		Pagination: page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}
