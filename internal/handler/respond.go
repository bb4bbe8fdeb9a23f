package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
)

// respondError maps a domain error to its HTTP response. Details are only
// included for callers the auth middleware marked as admin.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperrors.From(err)

	if !appErr.Recoverable() {
		logger.Error("request failed",
			zap.String("code", appErr.Code),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	includeDetails := c.GetBool("admin")
	c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.Response(includeDetails)})
}
