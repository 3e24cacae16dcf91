package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"posbackend/internal/clock"
	"posbackend/internal/report"
	"posbackend/internal/store"
)

/*
GET /api/reports?period=today|week|month|all
- Closed orders only for money and product totals
*/
func GetReport(st *store.Store, clk clock.Clock, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := report.ParsePeriod(c.Query("period"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r := report.Build(st.Orders(), period, clk.Now().In(loc))
		r.Products = report.AttachRecipes(r.Products, st.Mappings())
		c.JSON(http.StatusOK, r)
	}
}

func GetUnmappedProducts(st *store.Store, clk clock.Clock, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := report.ParsePeriod(c.Query("period"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		orders := report.FilterByPeriod(st.Orders(), period, clk.Now().In(loc))
		c.JSON(http.StatusOK, gin.H{"data": report.UnmappedProducts(orders, st.Mappings())})
	}
}
