package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posbackend/internal/clock"
	"posbackend/internal/models"
	"posbackend/internal/report"
	"posbackend/internal/store"
)

type ManualItemRequest struct {
	Name      string  `json:"name" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" binding:"gte=0"`
	Note      string  `json:"note"`
}

type ManualOrderRequest struct {
	Items []ManualItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CloseOrderRequest struct {
	PaymentType models.PaymentType `json:"paymentType" binding:"required,paymenttype"`
}

type ReplaceOrdersRequest struct {
	Orders []models.Order `json:"orders" binding:"required"`
}

/*
GET /api/orders
- ?state=open|closed
- ?period=today|week|month|all
- ?source=yemeksepeti|getir|trendyol|manual
- ?page=&limit= (no limit returns everything)
*/
func ListOrders(st *store.Store, clk clock.Clock, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		period, err := report.ParsePeriod(c.Query("period"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		state := strings.ToLower(strings.TrimSpace(c.Query("state")))
		if state != "" && state != "open" && state != "closed" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "state must be open or closed"})
			return
		}
		source := models.Source(strings.ToLower(strings.TrimSpace(c.Query("source"))))

		orders := report.FilterByPeriod(st.Orders(), period, clk.Now().In(loc))
		filtered := make([]models.Order, 0, len(orders))
		for _, o := range orders {
			if state == "open" && o.IsClosed || state == "closed" && !o.IsClosed {
				continue
			}
			if source != "" && o.Source != source {
				continue
			}
			filtered = append(filtered, o)
		}

		c.JSON(http.StatusOK, gin.H{
			"data":  paginate(filtered, page, limit),
			"total": len(filtered),
			"page":  page,
			"limit": limit,
		})
	}
}

func GetOrder(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseOrderID(c)
		if !ok {
			return
		}
		order, found := st.Order(id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/*
POST /api/orders
- Manual counter order, always cash and open
- Returns the stored order so the caller can print a receipt
*/
func CreateManualOrder(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "CreateManualOrder")

		var req ManualOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		items := make([]store.ManualItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, store.ManualItem{
				Name:      strings.TrimSpace(item.Name),
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Note:      strings.TrimSpace(item.Note),
			})
		}

		order, err := st.AddManual(items)
		if errors.Is(err, store.ErrInvalidManualOrder) {
			respondWithError(c, logger, http.StatusBadRequest, "CreateManualOrder", err.Error())
			return
		}
		if err != nil {
			respondWithError(c, logger, http.StatusInternalServerError, "CreateManualOrder", "could not create order")
			return
		}

		c.JSON(http.StatusCreated, order)
	}
}

/*
POST /api/orders/:id/close
- Unknown ids are not an error: {"changed": false}
*/
func CloseOrder(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "CloseOrder")

		id, ok := parseOrderID(c)
		if !ok {
			return
		}
		var req CloseOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		changed := st.Close(id, req.PaymentType)
		respondChange(c, st, id, changed)
	}
}

func ReopenOrder(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "ReopenOrder")

		id, ok := parseOrderID(c)
		if !ok {
			return
		}
		respondChange(c, st, id, st.Reopen(id))
	}
}

func DeleteOrder(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "DeleteOrder")

		id, ok := parseOrderID(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"changed": st.Delete(id)})
	}
}

/*
PUT /api/orders
- Replaces the whole collection, local close state included
*/
func ReplaceOrders(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "ReplaceOrders")

		var req ReplaceOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		for _, o := range req.Orders {
			if o.ID == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "every order needs an id"})
				return
			}
		}

		st.ReplaceAll(req.Orders)
		c.JSON(http.StatusOK, gin.H{"orders": len(st.Orders())})
	}
}

func respondChange(c *gin.Context, st *store.Store, id int64, changed bool) {
	if !changed {
		c.JSON(http.StatusOK, gin.H{"changed": false})
		return
	}
	order, _ := st.Order(id)
	c.JSON(http.StatusOK, gin.H{"changed": true, "order": order})
}
