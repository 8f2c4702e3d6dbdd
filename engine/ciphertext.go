package engine

import (
	"encoding/base64"
	"strings"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/daone-dadp/dadp-go/metrics"
)

// IsCiphertext reports whether s matches one of the four recognized
// ciphertext envelope shapes (spec.md §3):
//
//   - hub:{uuid}:{base64(IV||CT||TAG)}            (36-char uuid, decoded len >= 28)
//   - kms:{uuid}:{base64(EDK)}:{base64(IV||CT||TAG)}
//   - vault:{alias}:v{n}:{data}
//   - legacy: pure base64 whose first 36 decoded bytes are a hyphenated
//     UUID and whose total decoded length is >= 64
//
// A mixed form "PLAIN::ENC::CIPHER" is also recognized; detection examines
// the suffix only.
func IsCiphertext(s string) bool {
	if idx := strings.LastIndex(s, "::"); idx >= 0 {
		s = s[idx+2:]
	}

	switch {
	case strings.HasPrefix(s, "hub:"):
		return hasValidUUIDAndPayload(s, "hub:", 28)
	case strings.HasPrefix(s, "kms:"):
		return isKMSShape(s)
	case strings.HasPrefix(s, "vault:"):
		return isVaultShape(s)
	default:
		return isLegacyShape(s)
	}
}

const uuidLen = 36

func isUUID(s string) bool {
	if len(s) != uuidLen {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isHex(byte(c)) {
				return false
			}
		}
	}
	return true
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hasValidUUIDAndPayload(s, prefix string, minDecodedLen int) bool {
	rest := s[len(prefix):]
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return false
	}
	if !isUUID(parts[0]) {
		return false
	}
	decoded, err := decodeBase64Any(parts[1])
	if err != nil {
		return false
	}
	return len(decoded) >= minDecodedLen
}

func isKMSShape(s string) bool {
	rest := strings.TrimPrefix(s, "kms:")
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return false
	}
	if !isUUID(parts[0]) {
		return false
	}
	if _, err := decodeBase64Any(parts[1]); err != nil {
		return false
	}
	decoded, err := decodeBase64Any(parts[2])
	if err != nil {
		return false
	}
	return len(decoded) >= 28
}

func isVaultShape(s string) bool {
	rest := strings.TrimPrefix(s, "vault:")
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return false
	}
	alias, ver, data := parts[0], parts[1], parts[2]
	if alias == "" || data == "" {
		return false
	}
	if !strings.HasPrefix(ver, "v") || len(ver) < 2 {
		return false
	}
	for _, c := range ver[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isLegacyShape(s string) bool {
	decoded, err := decodeBase64Any(s)
	if err != nil || len(decoded) < 64 {
		return false
	}
	return isUUID(string(decoded[:uuidLen]))
}

func decodeBase64Any(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// CiphertextCache is a probabilistic front-door in front of IsCiphertext: a
// cuckoo filter recording strings already confirmed as ciphertext, with
// hit/miss counters. A filter hit is confirmed with IsCiphertext before it
// is reported, so a false positive costs one re-parse and never changes the
// answer; false negatives never occur for values previously added. The
// Interception Engine does not use this cache: it calls IsCiphertext
// directly.
//
// §3.1 DOMAIN STACK: github.com/seiflotfy/cuckoofilter.
type CiphertextCache struct {
	mu     sync.Mutex
	filter *cuckoo.Filter
	hits   uint64
	misses uint64
}

// NewCiphertextCache returns a cache sized for capacity expected-distinct
// ciphertext values.
func NewCiphertextCache(capacity uint) *CiphertextCache {
	return &CiphertextCache{filter: cuckoo.NewFilter(capacity)}
}

// Recognize reports whether s is ciphertext, consulting (and populating)
// the cache. It never returns a false "not ciphertext" for a value added
// earlier via a positive IsCiphertext result.
func (c *CiphertextCache) Recognize(s string) bool {
	c.mu.Lock()
	if c.filter.Lookup([]byte(s)) {
		c.hits++
		c.mu.Unlock()
		metrics.CiphertextCacheLookups.WithLabelValues("hit").Inc()
		return IsCiphertext(s)
	}
	c.mu.Unlock()

	if !IsCiphertext(s) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		metrics.CiphertextCacheLookups.WithLabelValues("miss").Inc()
		return false
	}

	c.mu.Lock()
	c.filter.InsertUnique([]byte(s))
	c.misses++
	c.mu.Unlock()
	metrics.CiphertextCacheLookups.WithLabelValues("miss").Inc()
	return true
}

// Stats returns (hits, misses) observed so far, for the metrics package.
func (c *CiphertextCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
