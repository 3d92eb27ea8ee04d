package form

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// State is the bound state of a form: input values, validation messages and
// the options loaded for reference fields. Templates render it through
// Fields.
type State struct {
	Schema *Schema
	Values Values
	Errors Errors

	options map[string][]Option
}

// NewState returns an empty state for s.
func (s *Schema) NewState() *State {
	return &State{Schema: s, Values: Values{}, Errors: Errors{}, options: map[string][]Option{}}
}

// Bind registers every field of s under its name with the submitted input
// and validates it.
func (s *Schema) Bind(input url.Values) *State {
	st := s.NewState()
	for _, f := range s.Fields {
		v := strings.TrimSpace(input.Get(f.Name))
		switch f.Widget.(type) {
		case Checkbox, Toggle:
			v = boolString(v)
		}
		st.Values[f.Name] = v
	}
	st.Errors = s.Validate(st.Values)
	return st
}

// Prefill returns a state holding the current values of record, for edit
// forms. It is not validated.
func (s *Schema) Prefill(record any) (*State, error) {
	values, err := ValuesOf(record)
	if err != nil {
		return nil, err
	}
	st := s.NewState()
	for _, f := range s.Fields {
		st.Values[f.Name] = values[f.Name]
	}
	return st, nil
}

// Valid reports whether the bound input passed validation.
func (st *State) Valid() bool {
	return len(st.Errors) == 0
}

// SetOptions supplies the choices of a reference field.
func (st *State) SetOptions(field string, opts []Option) {
	st.options[field] = opts
}

// Payload converts the bound values into a JSON object with typed values:
// booleans for checkboxes and toggles, numbers for number inputs. Empty
// numbers are omitted.
func (st *State) Payload() map[string]any {
	out := make(map[string]any, len(st.Schema.Fields))
	for _, f := range st.Schema.Fields {
		v := st.Values[f.Name]
		switch f.Widget.(type) {
		case Checkbox, Toggle:
			out[f.Name] = v == "true"
		case Number:
			if v != "" {
				out[f.Name] = json.Number(v)
			}
		default:
			out[f.Name] = v
		}
	}
	return out
}

// FieldView is the render model of one field.
type FieldView struct {
	Name         string
	Label        string
	Help         string
	Kind         Kind
	Value        string
	Error        string
	Required     bool
	Checked      bool
	Multiline    bool
	Placeholder  string
	Autocomplete string
	Step         string
	OnLabel      string
	OffLabel     string
	Options      []OptionView
}

// OptionView is one rendered choice.
type OptionView struct {
	Value    string
	Label    string
	Selected bool
}

// Fields returns the render models in schema order.
func (st *State) Fields() []FieldView {
	views := make([]FieldView, 0, len(st.Schema.Fields))
	for i := range st.Schema.Fields {
		f := &st.Schema.Fields[i]
		v := st.Values[f.Name]
		fv := FieldView{
			Name:     f.Name,
			Label:    f.Label,
			Help:     f.Help,
			Kind:     f.Widget.Kind(),
			Value:    v,
			Error:    st.Errors[f.Name],
			Required: f.Required(),
		}
		switch w := f.Widget.(type) {
		case Text:
			fv.Placeholder = w.Placeholder
			fv.Multiline = w.Multiline
		case Email:
			fv.Placeholder = w.Placeholder
		case Number:
			fv.Step = w.Step
			if fv.Step == "" {
				fv.Step = "any"
			}
		case Select:
			fv.Options = optionViews(w.Options, v)
		case Reference:
			fv.Options = optionViews(st.options[f.Name], v)
		case Password:
			fv.Value = ""
			fv.Autocomplete = w.Autocomplete
		case Checkbox:
			fv.Checked = v == "true"
		case Toggle:
			fv.Checked = v == "true"
			fv.OnLabel, fv.OffLabel = w.On, w.Off
		}
		views = append(views, fv)
	}
	return views
}

func optionViews(opts []Option, selected string) []OptionView {
	views := make([]OptionView, 0, len(opts))
	for _, o := range opts {
		views = append(views, OptionView{Value: o.Value, Label: o.Label, Selected: o.Value == selected})
	}
	return views
}

// ValuesOf flattens a JSON-encodable record into input strings keyed by
// JSON field name.
func ValuesOf(record any) (Values, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	fields := map[string]any{}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	out := make(Values, len(fields))
	for k, v := range fields {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case bool:
			out[k] = boolString(fmt.Sprint(x))
		case json.Number:
			out[k] = x.String()
		default:
			b, _ := json.Marshal(x)
			out[k] = string(b)
		}
	}
	return out, nil
}

func boolString(v string) string {
	switch v {
	case "true", "on", "1":
		return "true"
	}
	return "false"
}
