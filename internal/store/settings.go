package store

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"posbackend/internal/models"
)

func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// APIToken returns the configured aggregator credential, or "" when disconnected.
func (s *Store) APIToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.APIToken
}

func (s *Store) SetAPIToken(token string) {
	s.updateSettings(func(st *models.Settings) { st.APIToken = strings.TrimSpace(token) })
	s.logger.Info("api token updated", zap.Bool("connected", strings.TrimSpace(token) != ""))
}

func (s *Store) ClearAPIToken() {
	s.SetAPIToken("")
}

func (s *Store) SetRestaurantName(name string) {
	s.updateSettings(func(st *models.Settings) { st.RestaurantName = strings.TrimSpace(name) })
}

func (s *Store) updateSettings(fn func(*models.Settings)) {
	s.mu.Lock()
	fn(&s.settings)
	state, version := s.snapshotLocked()
	s.mu.Unlock()
	s.commit(state, version)
}

// RecordSyncAttempt stamps the time of the latest sync attempt, successful or not.
func (s *Store) RecordSyncAttempt(at time.Time) {
	s.mu.Lock()
	t := at
	s.lastSync = &t
	state, version := s.snapshotLocked()
	s.mu.Unlock()
	s.commit(state, version)
}

// LastSync returns the latest sync attempt time, if any.
func (s *Store) LastSync() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return time.Time{}, false
	}
	return *s.lastSync, true
}
