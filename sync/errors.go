package sync

import "github.com/pkg/errors"

// Named outcomes of a single mappings/check round-trip (spec.md §4.4
// table). No function in this package returns them: the tick loop
// (checkOnce) branches on the fields of hub.CheckResult instead.
var (
	ErrVersionMismatch = errors.New("dadp: sync: newer version available")
	ErrReregistered    = errors.New("dadp: sync: hub dropped the old identity")
	ErrNotFound        = errors.New("dadp: sync: hub does not know this tenant")
	ErrTransient       = errors.New("dadp: sync: transient check failure")
)
