// Package debug holds invariant checks for conditions that are programmer
// errors, not recoverable runtime faults. Never use it for data-plane faults
// like an Engine outage or a Hub 5xx — those go through cmn's typed errors
// and the §7 WARN/fallback policy instead.
package debug

import (
	"fmt"

	"github.com/golang/glog"
)

// Assert panics (after logging) if cond is false. a is formatted with fmt.Sprint.
func Assert(cond bool, a ...interface{}) {
	if !cond {
		fail(a...)
	}
}

// Assertf is the Printf-style variant of Assert.
func Assertf(cond bool, format string, a ...interface{}) {
	if !cond {
		fail(fmt.Sprintf(format, a...))
	}
}

// AssertNoErr panics if err is non-nil. Used where an error can only occur
// due to a prior programmer mistake (e.g. a malformed literal snapshot).
func AssertNoErr(err error) {
	if err != nil {
		fail(err)
	}
}

func fail(a ...interface{}) {
	msg := "dadp: assertion failed: " + fmt.Sprint(a...)
	glog.Errorf("%s", msg)
	glog.Flush()
	panic(msg)
}
