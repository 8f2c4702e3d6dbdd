// Package cmn provides the shared support used by every dadp component:
// identifier normalization, typed errors, environment-driven configuration,
// and small ID-generation helpers.
package cmn

import "strings"

// NormalizeIdentifier case-folds a schema/table/column identifier the same
// way on every vendor. Policy keys are authored in a vendor-agnostic form,
// so lower-casing is the one portable rule the system relies on (spec.md §9
// Open Question #1 — decided: lower-case universally).
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ColumnKey builds the fully-qualified, case-normalized identifier for a
// column. It mirrors policy.keyVariants' preference order but is also used
// by the schema collector (store) to key the SchemaEntry catalog, so it
// lives in cmn rather than policy.
func ColumnKey(datasourceID, schema, table, column string) string {
	table = NormalizeIdentifier(table)
	column = NormalizeIdentifier(column)
	switch {
	case datasourceID != "":
		return NormalizeIdentifier(datasourceID) + ":" + NormalizeIdentifier(schema) + "." + table + "." + column
	case schema != "":
		return NormalizeIdentifier(schema) + "." + table + "." + column
	default:
		return table + "." + column
	}
}
