package cli

import (
	"posbackend/internal/handlers"
	"posbackend/internal/remote"
	"posbackend/internal/store"
	"posbackend/internal/syncer"
)

var (
	_ syncer.Fetcher            = (*remote.Client)(nil)
	_ syncer.Store              = (*store.Store)(nil)
	_ handlers.Syncer           = (*syncer.Scheduler)(nil)
	_ handlers.ConnectionTester = (*remote.Client)(nil)
)
