package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/cloudnest/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) GetDashboard(c *gin.Context) {
	stats, err := s.dashboardSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// runJobHandler runs one lifecycle sweep synchronously and reports how many
// items it touched.
func (s *Server) runJobHandler(job string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.scheduler == nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		ctx := c.Request.Context()
		res, err := s.scheduler.Run(ctx, job)
		if err != nil {
			logger.FromContext(ctx).Warn("on-demand sweep failed", zap.String("job", job), zap.Error(err))
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": res})
	}
}
