package hub

import "github.com/pkg/errors"

// ErrTransient marks a Hub response outside the documented 200/304/404
// trio (spec.md §4.4/§6), or a register/schema-sync call the Hub did not
// accept: the control plane answered but not in a way the state machine can
// use, so the caller should retry on the next tick rather than treat it as a
// local persistence failure.
var ErrTransient = errors.New("dadp: hub: transient response")
