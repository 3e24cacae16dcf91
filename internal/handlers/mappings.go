package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posbackend/internal/store"
)

type MappingCreateRequest struct {
	HemenyoldaName string `json:"hemenyoldaName" binding:"required"`
	RecipeID       string `json:"recipeId" binding:"required"`
	RecipeName     string `json:"recipeName"`
}

type MappingUpdateRequest struct {
	HemenyoldaName *string `json:"hemenyoldaName"`
	RecipeID       *string `json:"recipeId"`
	RecipeName     *string `json:"recipeName"`
}

func GetMappings(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": st.Mappings()})
	}
}

/*
POST /api/mappings
- One mapping per product name
*/
func CreateMapping(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "CreateMapping")

		var req MappingCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		m, err := st.AddMapping(store.MappingInput{
			HemenyoldaName: req.HemenyoldaName,
			RecipeID:       req.RecipeID,
			RecipeName:     req.RecipeName,
		})
		if err != nil {
			respondMappingError(c, err)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

func UpdateMapping(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, logger, "UpdateMapping")

		var req MappingUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		m, err := st.UpdateMapping(c.Param("id"), store.MappingUpdate{
			HemenyoldaName: req.HemenyoldaName,
			RecipeID:       req.RecipeID,
			RecipeName:     req.RecipeName,
		})
		if err != nil {
			respondMappingError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

func DeleteMapping(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !st.RemoveMapping(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "mapping not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "mapping deleted"})
	}
}

func respondMappingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateMapping):
		c.JSON(http.StatusConflict, gin.H{"error": "mapping already exists"})
	case errors.Is(err, store.ErrMappingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "mapping not found"})
	case errors.Is(err, store.ErrInvalidMapping):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
