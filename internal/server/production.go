package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
)

func (s *Server) RecordProduction(c *gin.Context) {
	moldID := strings.TrimSpace(c.Param("id"))
	c.Set("mold_id", moldID)

	var req productiondomain.RecordProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.MoldID = moldID

	resp, err := s.productionSvc.RecordProduction(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListProductionEntries(c *gin.Context) {
	moldID := strings.TrimSpace(c.Param("id"))
	c.Set("mold_id", moldID)

	var req productiondomain.ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.MoldID = moldID

	resp, err := s.productionSvc.ListEntries(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
