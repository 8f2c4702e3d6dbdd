package engine

import "github.com/pkg/errors"

// ErrNotEncrypted is the distinguished "not encrypted" outcome (spec.md §3,
// §7 NotEncryptedSentinel): a decrypt call whose response body contains the
// Engine's sentinel message. It is not a failure — callers leave the
// original string unchanged and do not propagate an exception.
var ErrNotEncrypted = errors.New("engine: value is not encrypted")

// ErrConnection is the "connection class" outcome (spec.md §7
// EngineConnectionError): non-2xx without the not-encrypted sentinel, or a
// network-level failure reaching the Engine.
var ErrConnection = errors.New("engine: connection error")

// ErrPolicy is the "policy/cipher class" outcome (spec.md §7
// EnginePolicyError): success:false with any message other than the
// not-encrypted sentinel.
var ErrPolicy = errors.New("engine: policy error")

// notEncryptedSentinel is the Engine's distinguished "data is not
// encrypted" response substring (spec.md §3/§7), checked independent of
// HTTP status.
const notEncryptedSentinel = "데이터가 암호화되지 않았습니다"
