// Package engine implements the storage engine orchestrating internal/log
// and internal/index into the get/set/remove capability set the network
// server depends on, plus an alternate engine backed by an embedded
// third-party store (see bolt_engine.go) proving the interface is
// genuinely substitutable.
package engine

// Engine is the capability set the server is polymorphic over: set a key to
// a value, fetch a key's current value, and remove a key. Get reports
// absence as (ok=false, err=nil); Remove of an absent key is an error.
type Engine interface {
	Set(key, value string) error
	Get(key string) (value string, ok bool, err error)
	Remove(key string) error
	Close() error
}
