package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/paylink-backend/internal/consts"
	"github.com/dwarvesf/paylink-backend/internal/realtime"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/view"
)

var (
	errMissingCredential = errors.New("missing bearer token")
	errInvalidAdminKey   = errors.New("invalid admin key")
)

type BanChecker interface {
	IsBanned(ctx context.Context, sellerID string) (bool, error)
}

// sellerAuth resolves the bearer token into a seller id stored under
// consts.ContextKeySellerID.
func sellerAuth(authn realtime.Authenticator, bans BanChecker, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || authn == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, view.CreateResponse[any](nil, errMissingCredential, nil, "unauthorized"))
			return
		}

		sellerID, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, view.CreateResponse[any](nil, realtime.ErrUnauthorized, nil, "unauthorized"))
			return
		}

		if bans != nil {
			banned, err := bans.IsBanned(c.Request.Context(), sellerID)
			if err != nil {
				logger.Error("[SellerAuth][IsBanned]", map[string]string{
					"seller_id": sellerID,
					"error":     err.Error(),
				})
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, view.CreateResponse[any](nil, err, nil, "failed to verify seller"))
				return
			}
			if banned {
				c.AbortWithStatusJSON(http.StatusForbidden, view.CreateResponse[any](nil, realtime.ErrBanned, nil, "forbidden"))
				return
			}
		}

		c.Set(consts.ContextKeySellerID, sellerID)
		c.Next()
	}
}

// adminAuth guards operator endpoints. An unset key rejects every call.
func adminAuth(key string, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(consts.HeaderAdminKey)
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			logger.Warn("[AdminAuth] rejected admin request", map[string]string{
				"path":   c.FullPath(),
				"client": c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, view.CreateResponse[any](nil, errInvalidAdminKey, nil, "unauthorized"))
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
