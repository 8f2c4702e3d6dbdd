package intercept

import "github.com/pkg/errors"

// ErrNoEntityTableMap: a field could not be resolved because the host's
// EntityTableMap does not know the entity's concrete type (spec.md §4.5.2
// step 1 — "IE refuses to resolve policy without it").
var ErrNoEntityTableMap = errors.New("dadp: intercept: entity type not registered with EntityTableMap")
