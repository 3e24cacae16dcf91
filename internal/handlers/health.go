package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posbackend/internal/store"
)

// Health reports liveness. A failing persistence backend degrades the status
// but the process keeps serving from memory.
func Health(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.PersistError(); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "degraded", "persistError": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
