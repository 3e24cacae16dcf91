package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posbackend/internal/clock"
	"posbackend/internal/middleware"
	"posbackend/internal/store"
)

// Deps wires the HTTP surface to the running service.
type Deps struct {
	Store    *store.Store
	Syncer   Syncer
	Tester   ConnectionTester
	Metrics  http.Handler
	Clock    clock.Clock
	Location *time.Location
	Logger   *zap.Logger

	JWTSecret            string
	AuthDisabled         bool
	OperatorPasswordHash string
	AccessTokenTTL       time.Duration
}

func Register(r *gin.Engine, d Deps) {
	registerValidators()
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Location == nil {
		d.Location = time.Local
	}

	r.GET("/healthz", Health(d.Store))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	r.POST("/auth/login", OperatorLogin(d.OperatorPasswordHash, d.JWTSecret, d.AccessTokenTTL, d.Clock))

	api := r.Group("/api")
	if !d.AuthDisabled {
		api.Use(middleware.OperatorAuth(d.JWTSecret))
	}
	{
		api.GET("/connection", GetConnection(d.Store, d.Syncer))
		api.PUT("/connection", PutConnection(d.Store, d.Syncer, d.Tester, d.Logger))
		api.DELETE("/connection", DeleteConnection(d.Store, d.Syncer))
		api.POST("/sync", TriggerSync(d.Syncer, d.Logger))

		api.GET("/orders", ListOrders(d.Store, d.Clock, d.Location))
		api.POST("/orders", CreateManualOrder(d.Store, d.Logger))
		api.PUT("/orders", ReplaceOrders(d.Store, d.Logger))
		api.GET("/orders/:id", GetOrder(d.Store))
		api.POST("/orders/:id/close", CloseOrder(d.Store, d.Logger))
		api.POST("/orders/:id/reopen", ReopenOrder(d.Store, d.Logger))
		api.DELETE("/orders/:id", DeleteOrder(d.Store, d.Logger))

		api.GET("/mappings", GetMappings(d.Store))
		api.POST("/mappings", CreateMapping(d.Store, d.Logger))
		api.PUT("/mappings/:id", UpdateMapping(d.Store, d.Logger))
		api.DELETE("/mappings/:id", DeleteMapping(d.Store))

		api.GET("/reports", GetReport(d.Store, d.Clock, d.Location))
		api.GET("/reports/unmapped", GetUnmappedProducts(d.Store, d.Clock, d.Location))
	}
}
