package handler

import (
	"strconv"

	"wildlife-governance/internal/adapter/http/middleware"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/pkg/apperror"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// projectID parses the :id path parameter.
func projectID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("project id must be a positive integer")
	}
	return id, nil
}

// principal returns the authenticated caller or an AUTH_003 error.
func principal(c *gin.Context) (domain.Principal, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return domain.Principal{}, apperror.ErrInvalidToken()
	}
	return p, nil
}

// pagination reads limit and offset query parameters, clamping limit to [1, maxPageSize].
func pagination(c *gin.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, apperror.Validation("limit must be an integer")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, apperror.Validation("offset must be a non-negative integer")
		}
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

// int64Query parses an optional integer query parameter.
func int64Query(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperror.Validation(name + " must be an integer")
	}
	return &v, nil
}
