package app

import (
	"sigilo/internal/log"
	identitysvc "sigilo/internal/services/identity"
	messagesvc "sigilo/internal/services/message"
	prekeysvc "sigilo/internal/services/prekey"
	sessionsvc "sigilo/internal/services/session"
	"sigilo/internal/store/boltstore"
)

// App is the assembled dependency graph the CLI commands work against.
type App struct {
	Cfg *Config
	Log *log.Backend

	Store    *boltstore.Store
	Identity *identitysvc.Service
	PreKeys  *prekeysvc.Service
	Sessions *sessionsvc.Service
	Messages *messagesvc.Service
}

// Close releases the store and resident key material.
func (a *App) Close() error {
	a.Identity.Close()
	return a.Store.Close()
}
