package systems

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UpdateRecord is one append-only audit row written with every mutating
// operation. Description carries a redacted JSON rendering of the change;
// RawRequest preserves the client text exactly as received.
type UpdateRecord struct {
	Tenant     string
	SystemID   string
	Operation  Operation
	Description json.RawMessage
	RawRequest string
	SystemUUID uuid.UUID
	Created    time.Time
}
