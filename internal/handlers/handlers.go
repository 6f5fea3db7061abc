package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/logger"
	"nightpass/internal/middleware"
	"nightpass/internal/models"
	"nightpass/internal/reports"
	"nightpass/internal/service"
)

// maxFormFile bounds multipart files before the services check the exact
// per-kind limits.
const maxFormFile = 8 << 20

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail answers with the sanitized error. Unexpected errors are logged with
// their full text, which never reaches the caller.
func fail(c *gin.Context, err error) {
	status, msg := apperrors.Sanitize(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("Request failed",
			"error", err,
			"route", c.FullPath())
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperrors.Invalid("invalid request body: %s", bindMessage(err)))
		return false
	}
	return true
}

// bindMessage keeps decoder errors short and free of Go type names.
func bindMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "Field validation for") {
		if i := strings.Index(msg, "'"); i >= 0 {
			if j := strings.Index(msg[i+1:], "'"); j >= 0 {
				return "missing or invalid field " + strings.ToLower(msg[i+1:i+1+j])
			}
		}
	}
	if strings.Contains(msg, "cannot unmarshal") || strings.Contains(msg, "invalid character") || strings.HasSuffix(msg, "EOF") {
		return "malformed JSON"
	}
	return msg
}

// pagination reads page and pageSize; the services clamp the values.
func pagination(c *gin.Context) (models.Pagination, bool) {
	var p models.Pagination
	for _, q := range []struct {
		name string
		dst  *int
	}{
		{"page", &p.Page},
		{"pageSize", &p.PageSize},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, apperrors.Invalid("%s must be a positive integer", q.name))
			return p, false
		}
		*q.dst = n
	}
	return p, true
}

// readUpload loads the "file" field of a multipart form.
func readUpload(c *gin.Context) (*models.Upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, apperrors.Invalid("file is required"))
		return nil, false
	}
	if fh.Size > maxFormFile {
		fail(c, apperrors.Invalid("file is too large"))
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, fmt.Errorf("failed to open upload: %w", err))
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFormFile+1))
	if err != nil {
		fail(c, fmt.Errorf("failed to read upload: %w", err))
		return nil, false
	}
	return &models.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func sendWorkbook(c *gin.Context, data []byte, kind string, event *models.Event) {
	short, _, _ := strings.Cut(event.ID, "-")
	name := fmt.Sprintf("%s-%s-%s.xlsx", kind, event.StartsAt.Format("20060102"), short)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, reports.ContentType, data)
}

func actorID(c *gin.Context) string {
	if s := middleware.CurrentStaff(c); s != nil {
		return s.ID
	}
	return ""
}

// Me - GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	ok(c, http.StatusOK, middleware.CurrentStaff(c))
}
