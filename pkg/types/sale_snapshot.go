package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SaleLineSnapshot is the immutable copy of one reservation line item kept on
// a sale record. Once written it is never reconciled against the parts table.
type SaleLineSnapshot struct {
	PartID         string `json:"part_id,omitempty"`
	Name           string `json:"name"`
	Brand          string `json:"brand"`
	Model          string `json:"model"`
	Year           int    `json:"year"`
	PartType       string `json:"part_type"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	TotalCents     int    `json:"total_cents"`
}

// SaleLineSnapshots stores the line item copies inside a JSONB column.
type SaleLineSnapshots []SaleLineSnapshot

// Value serializes the snapshots to JSON.
func (s SaleLineSnapshots) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal(SaleLineSnapshots{})
	}
	return json.Marshal(s)
}

// Scan decodes JSONB into the snapshot slice.
func (s *SaleLineSnapshots) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded SaleLineSnapshots
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*s = decoded
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
