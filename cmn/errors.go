package cmn

import "github.com/pkg/errors"

// Sentinel errors for the §7 error-kind table. Components wrap these with
// github.com/pkg/errors so callers can still errors.Is/errors.As while a
// human-readable stack survives to the log line.
var (
	// ErrTenantMissing: no hubId yet and not in failOpen — fail the call.
	ErrTenantMissing = errors.New("dadp: hub identity required")

	// ErrPersistence: file I/O on PS failed; caller should WARN and continue in memory.
	ErrPersistence = errors.New("dadp: persistent store I/O failed")

	// ErrHubControlSegment: a crypto/endpoint URL pointed at the Hub's own
	// control-plane path; rejected at EC construction / endpoint apply time.
	ErrHubControlSegment = errors.New("dadp: crypto endpoint must not resolve to the hub control segment")
)

// Wrap attaches msg as context to err using pkg/errors, preserving a stack
// trace at the wrap site. A nil err yields a nil result.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is the Printf-style variant of Wrap.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
