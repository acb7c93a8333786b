package topup

import "github.com/xraph/topup/id"

// ID is the primary identifier type for all topup entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
