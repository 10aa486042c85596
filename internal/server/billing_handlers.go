package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary List plans
// @Description Plan catalog for the pricing page
// @Tags billing
// @Produce json
// @Success 200 {object} billing.Catalog
// @Router /api/billing/plans [get]
func (s *Server) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog)
}
