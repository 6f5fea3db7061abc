package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/logger"
	"nightpass/internal/models"
)

// StaffResolver maps the auth-provider subject to a staff membership.
type StaffResolver interface {
	ResolveStaff(ctx context.Context, userID string) (*models.Staff, error)
}

// AuthConfig configures access token verification.
type AuthConfig struct {
	// HS256 secret shared with the auth provider.
	Secret string
	// Expected "iss" claim; not checked when empty.
	Issuer string
}

// ParseToken verifies an HS256 access token and returns its subject.
func ParseToken(cfg AuthConfig, raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Auth verifies the bearer token and loads the staff row of its subject,
// which fixes the tenant of every backoffice request.
func Auth(cfg AuthConfig, staff StaffResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="backoffice"`)
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		ctx := c.Request.Context()
		subject, err := ParseToken(cfg, strings.TrimSpace(raw))
		if err != nil {
			logger.WithContext(ctx).Debug("Rejected access token", "error", err)
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		member, err := staff.ResolveStaff(ctx, subject)
		if err != nil {
			status, msg := apperrors.Sanitize(err)
			if status == http.StatusInternalServerError {
				logger.WithContext(ctx).Error("Failed to resolve staff", "error", err)
			}
			abort(c, status, msg)
			return
		}

		c.Set(staffKey, member)
		setTenant(c, member.TenantID)
		c.Request = c.Request.WithContext(logger.ContextWithStaff(c.Request.Context(), member.ID))
		c.Next()
	}
}

// RequireRole lets the request through only for the given staff roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		member := CurrentStaff(c)
		if member == nil {
			abort(c, http.StatusUnauthorized, apperrors.ErrUnauthorized.Error())
			return
		}
		if !allowed[member.Role] {
			abort(c, http.StatusForbidden, apperrors.ErrForbidden.Error())
			return
		}
		c.Next()
	}
}
