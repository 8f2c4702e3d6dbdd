// Package store implements the Persistent Store (PS): the on-disk JSON
// documents under a per-deployment directory holding instance identity,
// policy mappings, endpoint routing, and the schema catalog.
package store

import "time"

// InstanceIdentity — spec.md §3. alias is caller-chosen and stable across
// restarts; hubId is Hub-issued and authoritative once non-empty.
type InstanceIdentity struct {
	HubID      string    `json:"hubId,omitempty"`
	HubBaseURL string    `json:"hubUrl"`
	Alias      string    `json:"instanceId"`
	FailOpen   bool      `json:"failOpen"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Mapping is one row of a PolicySnapshot — spec.md §3.
type Mapping struct {
	DatasourceID string `json:"datasourceId,omitempty"`
	SchemaName   string `json:"schemaName"`
	TableName    string `json:"tableName"`
	ColumnName   string `json:"columnName"`
	PolicyName   string `json:"policyName"`
	Enabled      bool   `json:"enabled"`
	UseIV        *bool  `json:"useIv,omitempty"`
	UsePlain     *bool  `json:"usePlain,omitempty"`
}

// PolicyAttributes — per-policy defaults, spec.md §3.
type PolicyAttributes struct {
	UseIV    bool `json:"useIv"`
	UsePlain bool `json:"usePlain"`
}

// DefaultPolicyAttributes is returned by PR.getAttributes for unknown policies.
func DefaultPolicyAttributes() PolicyAttributes {
	return PolicyAttributes{UseIV: true, UsePlain: false}
}

// PolicySnapshot — spec.md §3.
type PolicySnapshot struct {
	Version    uint64                      `json:"version"`
	Mappings   []Mapping                   `json:"mappings"`
	Attributes map[string]PolicyAttributes `json:"attributes"`
	UpdatedAt  time.Time                   `json:"updatedAt"`
}

// EndpointRouting — spec.md §3.
type EndpointRouting struct {
	CryptoURL string `json:"cryptoUrl"`
	HubID     string `json:"hubId"`
	Version   uint64 `json:"version"`
	StatsURL  string `json:"statsUrl,omitempty"`
	SavedAt   time.Time `json:"savedAt"`
}

// SchemaStatus — spec.md §3. Transitions only CREATED -> REGISTERED.
type SchemaStatus string

const (
	SchemaCreated    SchemaStatus = "CREATED"
	SchemaRegistered SchemaStatus = "REGISTERED"
)

// SchemaEntry — spec.md §3. Key is cmn.ColumnKey(DatasourceID, SchemaName, TableName, ColumnName).
type SchemaEntry struct {
	DatasourceID  string       `json:"datasourceId,omitempty"`
	DBVendor      string       `json:"dbVendor,omitempty"`
	DatabaseName  string       `json:"databaseName,omitempty"`
	SchemaName    string       `json:"schemaName"`
	TableName     string       `json:"tableName"`
	ColumnName    string       `json:"columnName"`
	ColumnType    string       `json:"columnType,omitempty"`
	IsNullable    *bool        `json:"isNullable,omitempty"`
	ColumnDefault string       `json:"columnDefault,omitempty"`
	PolicyName    string       `json:"policyName,omitempty"`
	Status        SchemaStatus `json:"status"`
}

// Key returns the entry's canonical catalog key.
func (e SchemaEntry) Key(normalize func(datasourceID, schema, table, column string) string) string {
	return normalize(e.DatasourceID, e.SchemaName, e.TableName, e.ColumnName)
}
