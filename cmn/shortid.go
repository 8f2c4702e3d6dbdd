package cmn

import (
	"sync/atomic"
	"time"

	"github.com/teris-io/shortid"
)

// uuidABC mirrors the teacher's cmn/shortid.go alphabet choice: every
// character is URL- and filename-safe, so generated IDs can be used
// directly as temp-file suffixes.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid  *shortid.Shortid
	rtie int32
)

func init() {
	sid, _ = shortid.New(4 /*worker*/, uuidABC, uint64(time.Now().UnixNano()))
}

// GenUUID generates a short, human-readable, collision-resistant ID. Used
// as the default InstanceIdentity alias when the host does not supply one.
func GenUUID() string {
	id, err := sid.Generate()
	if err != nil {
		// shortid's internal clock/worker state is exhausted; this is not a
		// data-plane fault, fall back to a coarser but still unique value.
		return "dadp-" + time.Now().UTC().Format("20060102T150405.000000000")
	}
	return id
}

// GenTie returns a short, monotonically-varying suffix for temp-file names,
// so concurrent PS writers never collide on the same ".tmp.*" path.
func GenTie() string {
	tie := atomic.AddInt32(&rtie, 1)
	b0 := uuidABC[tie&0x3f]
	b1 := uuidABC[-tie&0x3f]
	b2 := uuidABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
