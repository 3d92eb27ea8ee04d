// Package form generates validated input fields from declarative schemas.
//
// A Schema is an ordered list of Fields. Each Field carries a Widget, a
// tagged variant naming the input control and its typed options, and a list
// of Rules. Validation never fails hard: every problem is reported as a
// per-field message so that a form can be redisplayed.
package form

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names a widget variant.
type Kind string

// Widget kinds.
const (
	KindText      Kind = "text"
	KindEmail     Kind = "email"
	KindNumber    Kind = "number"
	KindSelect    Kind = "select"
	KindReference Kind = "reference"
	KindDate      Kind = "date"
	KindCheckbox  Kind = "checkbox"
	KindToggle    Kind = "toggle"
	KindPassword  Kind = "password"
)

// Widget is the input control of a field. The unexported method closes the
// set of variants to this package.
type Widget interface {
	Kind() Kind
	// check validates a non-empty value against the widget's own format.
	check(value string) string
}

// Text is a single- or multi-line free text input.
type Text struct {
	Placeholder string
	Multiline   bool
}

// Email is a text input that only accepts an address.
type Email struct {
	Placeholder string
}

// Number is a decimal input. Integer restricts it to whole numbers.
type Number struct {
	Step    string
	Integer bool
}

// Option is one choice of a Select.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Select offers a fixed list of options.
type Select struct {
	Options []Option
}

// Reference selects the ID of a record of another entity. Its options are
// loaded when the form is rendered; LabelField names the field shown.
type Reference struct {
	Entity     string
	LabelField string
}

// Date accepts a calendar date in YYYY-MM-DD form.
type Date struct{}

// Checkbox is a boolean input.
type Checkbox struct{}

// Toggle is a boolean switch with labels for both states.
type Toggle struct {
	On  string
	Off string
}

// Password is a masked text input. Its value is never prefilled.
type Password struct {
	Autocomplete string
}

func (Text) Kind() Kind      { return KindText }
func (Email) Kind() Kind     { return KindEmail }
func (Number) Kind() Kind    { return KindNumber }
func (Select) Kind() Kind    { return KindSelect }
func (Reference) Kind() Kind { return KindReference }
func (Date) Kind() Kind      { return KindDate }
func (Checkbox) Kind() Kind  { return KindCheckbox }
func (Toggle) Kind() Kind    { return KindToggle }
func (Password) Kind() Kind  { return KindPassword }

func (Text) check(string) string      { return "" }
func (Reference) check(string) string { return "" }
func (Password) check(string) string  { return "" }

func (Email) check(v string) string {
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || !strings.Contains(v[strings.LastIndex(v, "@"):], ".") {
		return "must be a valid email address"
	}
	return ""
}

func (n Number) check(v string) string {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "must be a number"
	}
	if n.Integer && !d.IsInteger() {
		return "must be a whole number"
	}
	return ""
}

func (s Select) check(v string) string {
	for _, o := range s.Options {
		if o.Value == v {
			return ""
		}
	}
	return "must be one of the listed options"
}

func (Date) check(v string) string {
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return "must be a date (YYYY-MM-DD)"
	}
	return ""
}

func (Checkbox) check(v string) string { return checkBool(v) }
func (Toggle) check(v string) string   { return checkBool(v) }

func checkBool(v string) string {
	switch v {
	case "true", "false", "on", "off", "1", "0":
		return ""
	}
	return "must be true or false"
}

// Rule is one validation constraint. Check returns a message, or "" if the
// value passes. Rules other than Required are skipped for empty values.
type Rule interface {
	Check(value string) string
}

// Required rejects empty values.
type Required struct{}

func (Required) Check(v string) string {
	if strings.TrimSpace(v) == "" {
		return "is required"
	}
	return ""
}

// Pattern requires the value to match Expr.
type Pattern struct {
	Expr    *regexp.Regexp
	Message string
}

func (p Pattern) Check(v string) string {
	if p.Expr.MatchString(v) {
		return ""
	}
	if p.Message != "" {
		return p.Message
	}
	return "has an invalid format"
}

// Length bounds the number of characters. Zero means unbounded.
type Length struct {
	Min int
	Max int
}

func (l Length) Check(v string) string {
	n := len([]rune(v))
	if l.Min > 0 && n < l.Min {
		return fmt.Sprintf("must be at least %d characters", l.Min)
	}
	if l.Max > 0 && n > l.Max {
		return fmt.Sprintf("must be at most %d characters", l.Max)
	}
	return ""
}

// Range bounds a numeric value. Nil bounds are open.
type Range struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
	// Exclusive makes Min a strict lower bound.
	Exclusive bool
}

func (r Range) Check(v string) string {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "must be a number"
	}
	if r.Min != nil {
		if r.Exclusive && d.LessThanOrEqual(*r.Min) {
			return "must be greater than " + r.Min.String()
		}
		if d.LessThan(*r.Min) {
			return "must be at least " + r.Min.String()
		}
	}
	if r.Max != nil && d.GreaterThan(*r.Max) {
		return "must be at most " + r.Max.String()
	}
	return ""
}

// Custom runs an arbitrary predicate. Name identifies it in descriptors.
type Custom struct {
	Name string
	Func func(value string) error
}

func (c Custom) Check(v string) string {
	if err := c.Func(v); err != nil {
		return err.Error()
	}
	return ""
}

// Field describes one form input.
type Field struct {
	Name   string
	Label  string
	Help   string
	Widget Widget
	Rules  []Rule
}

// Required reports whether the field has a Required rule.
func (f *Field) Required() bool {
	for _, r := range f.Rules {
		if _, ok := r.(Required); ok {
			return true
		}
	}
	return false
}

// Validate returns the first failing message for value, or "".
func (f *Field) Validate(value string) string {
	if f.Required() {
		if msg := (Required{}).Check(value); msg != "" {
			return msg
		}
	}
	if value == "" {
		return ""
	}
	if msg := f.Widget.check(value); msg != "" {
		return msg
	}
	for _, r := range f.Rules {
		if _, ok := r.(Required); ok {
			continue
		}
		if msg := r.Check(value); msg != "" {
			return msg
		}
	}
	return ""
}

// CrossRule checks a constraint spanning several fields and reports it on
// Field.
type CrossRule struct {
	Field string
	Check func(v Values) string
}

// Schema is the ordered field list of one entity's form.
type Schema struct {
	Entity string
	Fields []Field
	Cross  []CrossRule
}

// Field returns the field with the given name.
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Values are raw input strings keyed by field name.
type Values map[string]string

// Errors are validation messages keyed by field name.
type Errors map[string]string

// Validate checks every field of v. The result is empty when v is valid.
func (s *Schema) Validate(v Values) Errors {
	errs := Errors{}
	for i := range s.Fields {
		f := &s.Fields[i]
		if msg := f.Validate(v[f.Name]); msg != "" {
			errs[f.Name] = msg
		}
	}
	for _, c := range s.Cross {
		if _, failed := errs[c.Field]; failed {
			continue
		}
		if msg := c.Check(v); msg != "" {
			errs[c.Field] = msg
		}
	}
	return errs
}

// Error returns the messages as a single error, or nil.
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for k, v := range e {
		parts = append(parts, k+" "+v)
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}
