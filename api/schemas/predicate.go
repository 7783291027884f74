package schemas

import (
	"fmt"
	"strconv"
)

// Field identifies a queryable finding attribute. Rules name their target
// field by concatenating a scope-attribute prefix with a condition key; the
// result must resolve to one of these constants, so malformed rules are
// rejected instead of silently matching nothing.
type Field string

// The queryable finding attributes. Names match the database columns.
const (
	FieldID          Field = "id"
	FieldAssetID     Field = "asset_id"
	FieldAssetName   Field = "asset_name"
	FieldTitle       Field = "title"
	FieldType        Field = "type"
	FieldHash        Field = "hash"
	FieldConfidence  Field = "confidence"
	FieldSeverity    Field = "severity"
	FieldSeverityNum Field = "severity_num"
	FieldStatus      Field = "status"
	FieldEngineType  Field = "engine_type"
)

var knownFields = map[Field]struct{}{
	FieldID:          {},
	FieldAssetID:     {},
	FieldAssetName:   {},
	FieldTitle:       {},
	FieldType:        {},
	FieldHash:        {},
	FieldConfidence:  {},
	FieldSeverity:    {},
	FieldSeverityNum: {},
	FieldStatus:      {},
	FieldEngineType:  {},
}

// ParseField validates a field name against the queryable attribute set.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := knownFields[f]; !ok {
		return "", fmt.Errorf("unknown finding attribute %q", name)
	}
	return f, nil
}

// Clause is a single exact-match condition on one finding attribute.
type Clause struct {
	Field Field
	Value string
}

// Predicate is a conjunction of clauses. An empty predicate matches
// everything.
type Predicate []Clause

// Eq builds an exact-match clause.
func Eq(field Field, value string) Clause {
	return Clause{Field: field, Value: value}
}

// Matches reports whether every clause holds for the given attribute lookup.
func (p Predicate) Matches(value func(Field) string) bool {
	for _, c := range p {
		if value(c.Field) != c.Value {
			return false
		}
	}
	return true
}

// FieldValue returns the raw finding's attribute as the string form used by
// predicate matching.
func (f *RawFinding) FieldValue(field Field) string {
	switch field {
	case FieldID:
		return f.ID
	case FieldAssetID:
		return f.AssetID
	case FieldAssetName:
		return f.AssetName
	case FieldTitle:
		return f.Title
	case FieldType:
		return f.Type
	case FieldHash:
		return f.Hash
	case FieldConfidence:
		return f.Confidence
	case FieldSeverity:
		return string(f.Severity)
	case FieldSeverityNum:
		return strconv.Itoa(f.SeverityNum)
	case FieldStatus:
		return string(f.Status)
	case FieldEngineType:
		return f.EngineType
	default:
		return ""
	}
}

// FieldValue returns the curated finding's attribute as the string form used
// by predicate matching.
func (f *Finding) FieldValue(field Field) string {
	switch field {
	case FieldID:
		return f.ID
	case FieldAssetID:
		return f.AssetID
	case FieldAssetName:
		return f.AssetName
	case FieldTitle:
		return f.Title
	case FieldType:
		return f.Type
	case FieldHash:
		return f.Hash
	case FieldConfidence:
		return f.Confidence
	case FieldSeverity:
		return string(f.Severity)
	case FieldSeverityNum:
		return strconv.Itoa(f.SeverityNum)
	case FieldStatus:
		return string(f.Status)
	case FieldEngineType:
		return f.EngineType
	default:
		return ""
	}
}
