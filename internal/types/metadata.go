package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata represents a JSONB field for storing key-value pairs
type Metadata map[string]string

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	bytes, err := JSONBytes(value)
	if err != nil {
		return err
	}

	result := make(Metadata)
	err = json.Unmarshal(bytes, &result)
	*m = result
	return err
}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		m = make(Metadata)
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	// sent as text so the driver does not encode it as bytea
	return string(bytes), nil
}

// JSONBytes extracts the raw JSON of a JSONB column value
func JSONBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}
}
