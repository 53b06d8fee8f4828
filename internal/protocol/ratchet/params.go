package ratchet

// Params bounds the memory a session may retain for out-of-order delivery.
// The bounds trade reorder tolerance against worst-case state size: a skipped
// index evicted from the cache is permanently undecryptable.
type Params struct {
	// MaxSkip caps how far ahead of the current chain index a single
	// message may reach before it is refused outright.
	MaxSkip uint32
	// MaxMessageKeys caps the skipped-key cache per receiving chain.
	// The oldest cached key is evicted first.
	MaxMessageKeys int
	// MaxReceiverChains caps retained receiving chains per session state.
	MaxReceiverChains int
	// MaxArchivedStates caps previous session states kept in a record.
	MaxArchivedStates int
}

// DefaultParams returns the bounds used when none are configured.
func DefaultParams() Params {
	return Params{
		MaxSkip:           2000,
		MaxMessageKeys:    2000,
		MaxReceiverChains: 5,
		MaxArchivedStates: 5,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MaxSkip == 0 {
		p.MaxSkip = d.MaxSkip
	}
	if p.MaxMessageKeys == 0 {
		p.MaxMessageKeys = d.MaxMessageKeys
	}
	if p.MaxReceiverChains == 0 {
		p.MaxReceiverChains = d.MaxReceiverChains
	}
	if p.MaxArchivedStates == 0 {
		p.MaxArchivedStates = d.MaxArchivedStates
	}
	return p
}
