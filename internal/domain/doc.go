// Package domain defines the core data models and contracts shared across the
// session engine: addresses, key material types, prekey and identity records,
// and the store interfaces the protocol layer is wired against.
//
// The package is a leaf: it depends on nothing above the standard library so
// that protocol, store, and service packages can all share it without cycles.
// Session records themselves are opaque at this layer; SessionStore persists
// the serialized bytes produced by the ratchet package.
package domain
