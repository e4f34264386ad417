package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
)

func (s *Server) ListAlerts(c *gin.Context) {
	var req alertdomain.ListAlertsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.alertSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListMoldAlerts(c *gin.Context) {
	moldID := strings.TrimSpace(c.Param("id"))
	c.Set("mold_id", moldID)

	var req alertdomain.ListAlertsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.MoldID = moldID

	resp, err := s.alertSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ResolveAlert(c *gin.Context) {
	alert, err := s.alertSvc.Resolve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}
