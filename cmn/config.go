package cmn

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Shape distinguishes the two deployment modes sharing this control/data
// plane core. It is reflected verbatim back to the Hub in the `type` field
// of the registration call (§6) — the system itself never interprets it.
type Shape string

const (
	ShapeAOP     Shape = "AOP"     // method-interception
	ShapeWrapper Shape = "WRAPPER" // driver-interception
)

// Config holds every environment-derived knob named in spec.md §6/§7.
// It is immutable once published via GlobalConfigOwner.CommitUpdate —
// readers only ever see a whole, consistent snapshot.
type Config struct {
	Shape Shape

	HubBaseURL    string
	CryptoBaseURL string // optional override; empty means "discover via Hub"
	Alias         string
	CACertPath    string
	StoreDir      string // PS directory, default ~/.dadp-<shape>/

	BatchMinSize     int  // default 100
	BatchMaxSize     int  // default 10000
	BatchCompressMin int  // lz4-compress request bodies at or above this many bytes; 0 disables
	BatchDisabled    bool // default false

	PeriodicInterval time.Duration // default 30s
	HTTPTimeout      time.Duration // default 5s

	FailOpen           bool // default true
	FallbackToOriginal bool // default true

	SchemaGateTimeout time.Duration // default 30s, §4.4 step 1
}

// Defaults returns the §7 configuration defaults prior to any environment
// override.
func Defaults(shape Shape) *Config {
	return &Config{
		Shape:              shape,
		StoreDir:           defaultStoreDir(shape),
		BatchMinSize:       100,
		BatchMaxSize:       10_000,
		BatchCompressMin:   0,
		BatchDisabled:      false,
		PeriodicInterval:   30 * time.Second,
		HTTPTimeout:        5 * time.Second,
		FailOpen:           true,
		FallbackToOriginal: true,
		SchemaGateTimeout:  30 * time.Second,
	}
}

func defaultStoreDir(shape Shape) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	suffix := "aop"
	if shape == ShapeWrapper {
		suffix = "wrapper"
	}
	return home + "/.dadp-" + suffix
}

// FromEnv overlays environment variables onto a Defaults(shape) config.
// File-based configuration loading is the host's responsibility (§1 scope).
func FromEnv(shape Shape) *Config {
	c := Defaults(shape)
	if v := os.Getenv("DADP_HUB_URL"); v != "" {
		c.HubBaseURL = v
	}
	if v := os.Getenv("DADP_CRYPTO_URL"); v != "" {
		c.CryptoBaseURL = v
	}
	if v := os.Getenv("DADP_ALIAS"); v != "" {
		c.Alias = v
	} else {
		c.Alias = GenUUID()
	}
	if v := os.Getenv("DADP_CA_CERT"); v != "" {
		c.CACertPath = v
	}
	if v := os.Getenv("DADP_STORE_DIR"); v != "" {
		c.StoreDir = v
	}
	if v, ok := envInt("DADP_BATCH_MIN"); ok {
		c.BatchMinSize = v
	}
	if v, ok := envInt("DADP_BATCH_MAX"); ok {
		c.BatchMaxSize = v
	}
	if v, ok := envInt("DADP_BATCH_COMPRESS_MIN"); ok {
		c.BatchCompressMin = v
	}
	if v, ok := envBool("DADP_BATCH_DISABLED"); ok {
		c.BatchDisabled = v
	}
	if v, ok := envDuration("DADP_PERIODIC_INTERVAL"); ok {
		c.PeriodicInterval = v
	}
	if v, ok := envDuration("DADP_HTTP_TIMEOUT"); ok {
		c.HTTPTimeout = v
	}
	if v, ok := envBool("DADP_FAIL_OPEN"); ok {
		c.FailOpen = v
	}
	if v, ok := envBool("DADP_FALLBACK_TO_ORIGINAL"); ok {
		c.FallbackToOriginal = v
	}
	return c
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Clone makes a shallow copy suitable as the basis for BeginUpdate/CommitUpdate.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// GlobalConfigOwner mirrors the teacher's cmn.globalConfigOwner: an
// atomic.Pointer holding an immutable *Config plus a mutex serializing
// writers, so readers never observe a torn config and writers never race
// each other. BeginUpdate/CommitUpdate bracket a read-modify-write; Get is
// lock-free.
type GlobalConfigOwner struct {
	mtx sync.Mutex
	ptr atomic.Pointer[Config]
}

// NewGlobalConfigOwner seeds the owner with an initial snapshot.
func NewGlobalConfigOwner(initial *Config) *GlobalConfigOwner {
	gco := &GlobalConfigOwner{}
	gco.ptr.Store(initial)
	return gco
}

// Get returns the current snapshot. Safe for concurrent use without locking.
func (gco *GlobalConfigOwner) Get() *Config {
	return gco.ptr.Load()
}

// BeginUpdate locks the owner and returns a mutable clone of the current
// config. The caller MUST call CommitUpdate or DiscardUpdate.
func (gco *GlobalConfigOwner) BeginUpdate() *Config {
	gco.mtx.Lock()
	return gco.Get().Clone()
}

// CommitUpdate atomically publishes config as the new snapshot and unlocks.
func (gco *GlobalConfigOwner) CommitUpdate(config *Config) {
	gco.ptr.Store(config)
	gco.mtx.Unlock()
}

// DiscardUpdate unlocks without publishing, leaving the prior snapshot in effect.
func (gco *GlobalConfigOwner) DiscardUpdate() {
	gco.mtx.Unlock()
}
