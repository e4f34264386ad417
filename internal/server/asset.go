package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
)

func (s *Server) CreateMold(c *gin.Context) {
	var req assetdomain.CreateMoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	mold, err := s.assetSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, mold)
}

func (s *Server) GetMoldByID(c *gin.Context) {
	moldID := strings.TrimSpace(c.Param("id"))
	c.Set("mold_id", moldID)

	mold, err := s.assetSvc.GetByID(c.Request.Context(), moldID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, mold)
}

func (s *Server) ListMolds(c *gin.Context) {
	var req assetdomain.ListMoldsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.assetSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateMoldTarget(c *gin.Context) {
	moldID := strings.TrimSpace(c.Param("id"))
	c.Set("mold_id", moldID)

	var req assetdomain.UpdateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.MoldID = moldID

	mold, err := s.assetSvc.UpdateTarget(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, mold)
}
