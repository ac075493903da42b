package enums

import "fmt"

// PartCondition grades the physical state of a salvaged part.
type PartCondition string

const (
	PartConditionNewTakeoff  PartCondition = "new_takeoff"
	PartConditionUsed        PartCondition = "used"
	PartConditionRefurbished PartCondition = "refurbished"
)

var validPartConditions = []PartCondition{
	PartConditionNewTakeoff,
	PartConditionUsed,
	PartConditionRefurbished,
}

// String implements fmt.Stringer.
func (p PartCondition) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PartCondition.
func (p PartCondition) IsValid() bool {
	for _, candidate := range validPartConditions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePartCondition converts raw input into a PartCondition.
func ParsePartCondition(value string) (PartCondition, error) {
	for _, candidate := range validPartConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid part condition %q", value)
}
