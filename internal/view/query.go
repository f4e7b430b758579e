package view

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// Select evaluates a JMESPath expression against the JSON form of v (a view model, a cart, or any
// JSON-encodable value) and returns the selected value.
// It returns nil and no error if the expression does not match anything.
func Select(expression string, v any) (any, error) {
	doc, err := toDocument(v)
	if err != nil {
		return nil, err
	}
	out, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return out, nil
}

// SelectString is Select with the selection coerced to a string; non-strings are JSON-encoded.
func SelectString(expression string, v any) (*string, error) {
	out, err := Select(expression, v)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	switch t := out.(type) {
	case string:
		return &t, nil
	default:
		b, _ := json.Marshal(t)
		bs := string(b)
		return &bs, nil
	}
}

// toDocument turns v into the map/slice form jmespath walks, keyed by JSON field names.
func toDocument(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
