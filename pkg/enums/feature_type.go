package enums

import "fmt"

// FeatureType maps to the feature_type enum in Postgres.
type FeatureType string

const (
	FeatureTypeBoolean FeatureType = "boolean"
	FeatureTypeLimit   FeatureType = "limit"
	FeatureTypeQuota   FeatureType = "quota"
)

var validFeatureTypes = []FeatureType{
	FeatureTypeBoolean,
	FeatureTypeLimit,
	FeatureTypeQuota,
}

// IsValid reports whether the value matches the canonical feature_type enum.
func (f FeatureType) IsValid() bool {
	for _, candidate := range validFeatureTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeatureType converts raw input into FeatureType.
func ParseFeatureType(value string) (FeatureType, error) {
	for _, candidate := range validFeatureTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid feature type %q", value)
}
