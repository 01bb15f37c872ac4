package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/tissue"
)

// ListMaterials returns every material profile and the tool base forces.
func ListMaterials(registry tissue.MaterialRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		tools := make([]gin.H, 0, len(tissue.Tools()))
		for _, t := range tissue.Tools() {
			f, _ := tissue.BaseForce(t)
			tools = append(tools, gin.H{"tool": t, "base_force": f})
		}
		c.JSON(http.StatusOK, gin.H{
			"materials": registry.All(),
			"tools":     tools,
		})
	}
}
