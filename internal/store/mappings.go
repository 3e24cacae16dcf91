package store

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"posbackend/internal/models"
)

var (
	ErrDuplicateMapping = errors.New("a mapping for this product name already exists")
	ErrMappingNotFound  = errors.New("mapping not found")
	ErrInvalidMapping   = errors.New("mapping needs a product name and a recipe id")
)

// MappingInput carries the editable fields of a ProductMapping.
type MappingInput struct {
	HemenyoldaName string
	RecipeID       string
	RecipeName     string
}

// MappingUpdate carries optional field changes; nil fields are left as is.
type MappingUpdate struct {
	HemenyoldaName *string
	RecipeID       *string
	RecipeName     *string
}

// AddMapping stores a new mapping. The product name is kept exactly as given
// so it matches ingested line items byte for byte; names are unique.
func (s *Store) AddMapping(in MappingInput) (models.ProductMapping, error) {
	name := in.HemenyoldaName
	recipeID := strings.TrimSpace(in.RecipeID)
	if strings.TrimSpace(name) == "" || recipeID == "" {
		return models.ProductMapping{}, ErrInvalidMapping
	}

	s.mu.Lock()
	if s.mappingIndexByNameLocked(name) >= 0 {
		s.mu.Unlock()
		return models.ProductMapping{}, ErrDuplicateMapping
	}
	m := models.ProductMapping{
		ID:             uuid.NewString(),
		HemenyoldaName: name,
		RecipeID:       recipeID,
		RecipeName:     strings.TrimSpace(in.RecipeName),
	}
	s.mappings = append(s.mappings, m)
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("mapping added", zap.String("mappingId", m.ID), zap.String("product", name))
	return m, nil
}

// UpdateMapping applies upd to the mapping with id.
func (s *Store) UpdateMapping(id string, upd MappingUpdate) (models.ProductMapping, error) {
	s.mu.Lock()
	i := s.mappingIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return models.ProductMapping{}, ErrMappingNotFound
	}
	m := s.mappings[i]
	if upd.HemenyoldaName != nil {
		name := *upd.HemenyoldaName
		if strings.TrimSpace(name) == "" {
			s.mu.Unlock()
			return models.ProductMapping{}, ErrInvalidMapping
		}
		if j := s.mappingIndexByNameLocked(name); j >= 0 && j != i {
			s.mu.Unlock()
			return models.ProductMapping{}, ErrDuplicateMapping
		}
		m.HemenyoldaName = name
	}
	if upd.RecipeID != nil {
		recipeID := strings.TrimSpace(*upd.RecipeID)
		if recipeID == "" {
			s.mu.Unlock()
			return models.ProductMapping{}, ErrInvalidMapping
		}
		m.RecipeID = recipeID
	}
	if upd.RecipeName != nil {
		m.RecipeName = strings.TrimSpace(*upd.RecipeName)
	}
	s.mappings[i] = m
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("mapping updated", zap.String("mappingId", id))
	return m, nil
}

// RemoveMapping deletes the mapping with id; unknown ids report false.
func (s *Store) RemoveMapping(id string) bool {
	s.mu.Lock()
	i := s.mappingIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.mappings = append(s.mappings[:i], s.mappings[i+1:]...)
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("mapping removed", zap.String("mappingId", id))
	return true
}

// Mappings returns a copy of all mappings in insertion order.
func (s *Store) Mappings() []models.ProductMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ProductMapping, len(s.mappings))
	copy(out, s.mappings)
	return out
}

// MappingFor returns the mapping for an ingested product name.
func (s *Store) MappingFor(name string) (models.ProductMapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.mappingIndexByNameLocked(name)
	if i < 0 {
		return models.ProductMapping{}, false
	}
	return s.mappings[i], true
}

func (s *Store) mappingIndexLocked(id string) int {
	for i := range s.mappings {
		if s.mappings[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) mappingIndexByNameLocked(name string) int {
	for i := range s.mappings {
		if s.mappings[i].HemenyoldaName == name {
			return i
		}
	}
	return -1
}
