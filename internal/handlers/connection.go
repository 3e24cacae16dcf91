package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posbackend/internal/remote"
	"posbackend/internal/store"
	"posbackend/internal/syncer"
)

// Syncer is the scheduler surface the API drives.
type Syncer interface {
	SyncNow(ctx context.Context) syncer.Result
	Status() syncer.Status
	Refresh()
}

// ConnectionTester validates an aggregator credential.
type ConnectionTester interface {
	TestConnection(ctx context.Context, token string) error
}

type ConnectionRequest struct {
	APIToken       string  `json:"apiToken" binding:"required"`
	RestaurantName *string `json:"restaurantName"`
}

func connectionPayload(st *store.Store, sync Syncer) gin.H {
	settings := st.Settings()
	payload := gin.H{
		"connected":      settings.Connected(),
		"restaurantName": settings.RestaurantName,
		"sync":           sync.Status(),
	}
	if last, ok := st.LastSync(); ok {
		payload["lastSync"] = last
	}
	if err := st.PersistError(); err != nil {
		payload["persistError"] = err.Error()
	}
	return payload
}

func GetConnection(st *store.Store, sync Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, connectionPayload(st, sync))
	}
}

/*
PUT /api/connection
- Token is checked against the aggregator before it is stored
- 401 from the aggregator → "invalid credential"
*/
func PutConnection(st *store.Store, sync Syncer, tester ConnectionTester, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "PutConnection")

		var req ConnectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		token := strings.TrimSpace(req.APIToken)
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": []string{"apiToken is required"}})
			return
		}

		if err := tester.TestConnection(c.Request.Context(), token); err != nil {
			var connErr *remote.ConnectionError
			switch {
			case errors.Is(err, remote.ErrInvalidCredential):
				respondWithError(c, logger, http.StatusUnauthorized, "PutConnection", "invalid credential")
			case errors.As(err, &connErr):
				respondWithError(c, logger, http.StatusBadGateway, "PutConnection", connErr.Error())
			default:
				respondWithError(c, logger, http.StatusBadGateway, "PutConnection", "connection failed: "+err.Error())
			}
			return
		}

		st.SetAPIToken(token)
		if req.RestaurantName != nil {
			st.SetRestaurantName(*req.RestaurantName)
		}
		sync.Refresh()

		c.JSON(http.StatusOK, connectionPayload(st, sync))
	}
}

func DeleteConnection(st *store.Store, sync Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		st.ClearAPIToken()
		sync.Refresh()
		c.JSON(http.StatusOK, connectionPayload(st, sync))
	}
}

/*
POST /api/sync
- Runs a cycle now, or joins the one in flight
*/
func TriggerSync(sync Syncer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "TriggerSync")

		result := sync.SyncNow(c.Request.Context())
		if result.Error == syncer.ErrNotConnected.Error() {
			c.JSON(http.StatusConflict, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
