package app

import (
	"os"

	"sigilo/internal/log"
	identitysvc "sigilo/internal/services/identity"
	messagesvc "sigilo/internal/services/message"
	prekeysvc "sigilo/internal/services/prekey"
	sessionsvc "sigilo/internal/services/session"
	"sigilo/internal/store/boltstore"
)

// New constructs the dependency graph from cfg. The passphrase guards the
// identity keys at rest.
func New(cfg *Config, passphrase string) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.Home, 0o700); err != nil {
		return nil, err
	}

	backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, err
	}

	st, err := boltstore.Open(cfg.Storage.DBPath(), passphrase, backend)
	if err != nil {
		return nil, err
	}

	params := cfg.Ratchet.Params()
	ids := identitysvc.New(st, backend)
	prekeys := prekeysvc.New(ids, st, st, backend)
	sessions := sessionsvc.New(ids, st, st, st, params, backend)
	messages := messagesvc.New(ids, sessions, st, backend)

	return &App{
		Cfg:      cfg,
		Log:      backend,
		Store:    st,
		Identity: ids,
		PreKeys:  prekeys,
		Sessions: sessions,
		Messages: messages,
	}, nil
}
