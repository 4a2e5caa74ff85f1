package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// NetworkConfig is the opaque, JSON-serializable consensus configuration
// blob consumed at orchestration time. Its schema is owned by the
// orchestrator/config-parsing layer (external collaborator, spec.md §1);
// this module only durably stores and returns the most recent one.
type NetworkConfig struct {
	json.RawMessage
}

// Value implements driver.Valuer so a NetworkConfig can be written directly
// to a JSON/JSONB column.
func (c NetworkConfig) Value() (driver.Value, error) {
	if c.RawMessage == nil {
		return nil, nil
	}
	return []byte(c.RawMessage), nil
}

// Scan implements sql.Scanner.
func (c *NetworkConfig) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.RawMessage = nil
		return nil
	case []byte:
		c.RawMessage = append([]byte(nil), v...)
		return nil
	case string:
		c.RawMessage = []byte(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into NetworkConfig", src)
	}
}
