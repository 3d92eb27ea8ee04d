package form

import "encoding/json"

// MarshalJSON encodes the field as a descriptor a client can render from.
func (f Field) MarshalJSON() ([]byte, error) {
	rules := make([]map[string]any, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, describeRule(r))
	}
	return json.Marshal(map[string]any{
		"name":   f.Name,
		"label":  f.Label,
		"help":   f.Help,
		"widget": describeWidget(f.Widget),
		"rules":  rules,
	})
}

// MarshalJSON encodes the schema's fields in order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"entity": s.Entity,
		"fields": s.Fields,
	})
}

func describeWidget(w Widget) map[string]any {
	d := map[string]any{"kind": w.Kind()}
	switch w := w.(type) {
	case Text:
		d["placeholder"] = w.Placeholder
		d["multiline"] = w.Multiline
	case Email:
		d["placeholder"] = w.Placeholder
	case Number:
		d["step"] = w.Step
		d["integer"] = w.Integer
	case Select:
		d["options"] = w.Options
	case Reference:
		d["entity"] = w.Entity
		d["labelField"] = w.LabelField
	case Password:
		d["autocomplete"] = w.Autocomplete
	case Toggle:
		d["on"] = w.On
		d["off"] = w.Off
	}
	return d
}

func describeRule(r Rule) map[string]any {
	switch r := r.(type) {
	case Required:
		return map[string]any{"kind": "required"}
	case Pattern:
		return map[string]any{"kind": "pattern", "pattern": r.Expr.String(), "message": r.Message}
	case Length:
		return map[string]any{"kind": "length", "min": r.Min, "max": r.Max}
	case Range:
		d := map[string]any{"kind": "range", "exclusive": r.Exclusive}
		if r.Min != nil {
			d["min"] = r.Min.String()
		}
		if r.Max != nil {
			d["max"] = r.Max.String()
		}
		return d
	case Custom:
		return map[string]any{"kind": "custom", "name": r.Name}
	}
	return map[string]any{"kind": "unknown"}
}
