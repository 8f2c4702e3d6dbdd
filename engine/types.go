package engine

// BatchEncryptItem is one row of an encrypt/batch request body (spec.md §4.3).
type BatchEncryptItem struct {
	Data       string
	PolicyName string
}

// BatchDecryptItem is one row of a decrypt/batch request body (spec.md §4.3).
type BatchDecryptItem struct {
	Data           string
	MaskPolicyName string
	MaskPolicyUID  string
}

// BatchResult is one row of a batch response. When Success is false, Value
// is the item's original value unchanged — callers must leave the field as
// it was, exactly mirroring the single-call not-encrypted sentinel
// behavior (spec.md §4.5.4 step 6).
type BatchResult struct {
	Success bool
	Value   string
}

// Client is the Engine Client (EC) interface consumed by the Interception
// Engine and the Sync Orchestrator's endpoint seeding. A fake implementing
// this interface is used throughout the intercept/sync test suites.
type Client interface {
	Encrypt(data, policyName string, forSearch bool) (string, error)
	Decrypt(data, policyName, maskPolicyName, maskPolicyUID string) (string, error)
	EncryptBatch(items []BatchEncryptItem) ([]BatchResult, error)
	DecryptBatch(items []BatchDecryptItem) ([]BatchResult, error)
}
