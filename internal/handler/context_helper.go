package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/middleware"
	"github.com/edutrackers/edutrack-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requesterFromContext builds the explicit authorization principal from the
// validated token. An unauthenticated request yields the zero Identity, which
// every rule denies.
func requesterFromContext(c *gin.Context) authz.Identity {
	claims := claimsFromContext(c)
	if claims == nil {
		return authz.Identity{}
	}
	return authz.Identity{ID: claims.IdentityID}
}

func pageFromQuery(c *gin.Context) (int, int) {
	page := 1
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		page = v
	}
	size := 20
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 {
		size = v
	}
	return page, size
}

func paginationFor(page, size, total int) *models.Pagination {
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
