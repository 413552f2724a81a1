package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// document is the top-level shape of the rule document (spec.md §6): three
// arrays, each independently optional.
type document struct {
	TypeRules       []typeRuleEntry       `json:"transform_datatype_rules"`
	ObjectNameRules []objectNameRuleEntry `json:"transform_objectname_rules"`
	ExpressionRules []expressionRuleEntry `json:"transform_expression_rules"`
}

type typeRuleEntry struct {
	TranslateFrom        string `json:"translate_from"`
	TranslateFromAutoinc bool   `json:"translate_from_autoinc"`
	TranslateTo          string `json:"translate_to"`
	TranslateToSize       int   `json:"translate_to_size"`
}

type objectNameRuleEntry struct {
	ObjectType        string `json:"object_type"`
	SourceObject      string `json:"source_object"`
	DestinationObject string `json:"destination_object"`
}

type expressionRuleEntry struct {
	TransformFrom       string `json:"transform_from"`
	TransformExpression string `json:"transform_expression"`
}

// LoadDocument reads and parses a rule document from path, returning a
// populated Store. Grounded on the teacher's internal/parser/toml loader
// shape (read file -> unmarshal -> per-section parse, aggregating the
// first error), adapted from TOML-decoding a schema file to JSON-decoding
// three flat rule arrays.
//
// Any malformed entry is fatal at load (spec.md §7: "Rule file malformed
// ⇒ connector does not start").
func LoadDocument(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}
	return ParseDocument(raw)
}

// ParseDocument parses rule-document bytes directly; split out from
// LoadDocument so tests and in-process rule-document generation do not
// need a filesystem round trip.
func ParseDocument(raw []byte) (*Store, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("rules: malformed document: %w", err)
	}

	store := NewStore()

	for i, e := range doc.TypeRules {
		if strings.TrimSpace(e.TranslateFrom) == "" || strings.TrimSpace(e.TranslateTo) == "" {
			return nil, fmt.Errorf("rules: transform_datatype_rules[%d]: translate_from and translate_to are required", i)
		}
		size := e.TranslateToSize
		if size == 0 {
			size = -1
		}
		store.PutType(e.TranslateFrom, e.TranslateFromAutoinc, e.TranslateTo, size)
	}

	for i, e := range doc.ObjectNameRules {
		objType := ObjectType(e.ObjectType)
		if objType != ObjectTable && objType != ObjectColumn {
			return nil, fmt.Errorf("rules: transform_objectname_rules[%d]: object_type must be \"table\" or \"column\", got %q", i, e.ObjectType)
		}
		if strings.TrimSpace(e.SourceObject) == "" || strings.TrimSpace(e.DestinationObject) == "" {
			return nil, fmt.Errorf("rules: transform_objectname_rules[%d]: source_object and destination_object are required", i)
		}
		store.PutObjectName(e.SourceObject, objType, e.DestinationObject)
	}

	for i, e := range doc.ExpressionRules {
		if strings.TrimSpace(e.TransformFrom) == "" || strings.TrimSpace(e.TransformExpression) == "" {
			return nil, fmt.Errorf("rules: transform_expression_rules[%d]: transform_from and transform_expression are required", i)
		}
		store.PutExpression(e.TransformFrom, e.TransformExpression)
	}

	return store, nil
}
