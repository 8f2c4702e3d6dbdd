// Package hub implements the wire client for the Hub control-plane
// contracts consumed by the Sync Orchestrator (spec.md §6). The Hub itself
// is an external collaborator — this package only speaks its HTTP contract.
package hub

// RegisterRequest is the body of POST {hub}/.../instances/register.
type RegisterRequest struct {
	InstanceID string `json:"instanceId"`
	Type       string `json:"type"` // reflected verbatim from cmn.Shape; never interpreted here
}

// RegisterResponse is {success, data:{hubId}}.
type RegisterResponse struct {
	Success bool `json:"success"`
	Data    struct {
		HubID string `json:"hubId"`
	} `json:"data"`
}

// CheckResult is the interpreted outcome of GET {hub}/.../mappings/check
// (spec.md §4.4 table).
type CheckResult struct {
	NotModified  bool
	Reregistered bool
	NewHubID     string
	NewerVersion bool
	NotFound     bool
}

// checkResponseBody is {reregistered?, hubId?} on 200.
type checkResponseBody struct {
	Reregistered bool   `json:"reregistered"`
	HubID        string `json:"hubId"`
}

// SnapshotResponse is {version, mappings[], endpoint?} on 200 from
// GET {hub}/.../policies?instanceId=&alias=.
type SnapshotResponse struct {
	Version  uint64          `json:"version"`
	Mappings []SnapshotMapping `json:"mappings"`
	Endpoint *SnapshotEndpoint `json:"endpoint,omitempty"`
}

// SnapshotMapping mirrors store.Mapping on the wire (duplicated rather than
// imported so package hub has no dependency on package store — it only
// speaks JSON).
type SnapshotMapping struct {
	DatasourceID string `json:"datasourceId,omitempty"`
	SchemaName   string `json:"schemaName"`
	TableName    string `json:"tableName"`
	ColumnName   string `json:"columnName"`
	PolicyName   string `json:"policyName"`
	Enabled      bool   `json:"enabled"`
	UseIV        *bool  `json:"useIv,omitempty"`
	UsePlain     *bool  `json:"usePlain,omitempty"`
}

// SnapshotEndpoint mirrors store.EndpointRouting's wire fields.
type SnapshotEndpoint struct {
	CryptoURL string `json:"cryptoUrl"`
	StatsURL  string `json:"statsUrl,omitempty"`
}

// SchemaSyncEntry is one row of the schema/sync request body.
type SchemaSyncEntry struct {
	SchemaName string `json:"schemaName"`
	TableName  string `json:"tableName"`
	ColumnName string `json:"columnName"`
	PolicyName string `json:"policyName,omitempty"`
}
