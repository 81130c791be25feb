package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation messages keyed by field path.
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the failing field paths, sorted.
func (e *Errors) Fields() []string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Err folds the bag into a single error, or nil when validation passed.
// Messages appear in field order so the text is stable.
func (e *Errors) Err() error {
	if !e.Has() {
		return nil
	}
	var errs *multierror.Error
	for _, f := range e.Fields() {
		for _, msg := range e.Bag[f] {
			errs = multierror.Append(errs, fmt.Errorf("%s", msg))
		}
	}
	errs.ErrorFormat = func(es []error) string {
		parts := make([]string, len(es))
		for i, err := range es {
			parts[i] = err.Error()
		}
		return strings.Join(parts, " ")
	}
	return errs
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"paths": "list|strings", "cache_file": "nullable|string"}
type Rules map[string]string

// Validator checks one level of a decoded configuration tree. Field paths in
// messages are prefixed with Path, so nested sections read "deptrac.paths".
type Validator struct {
	data   map[string]any
	rules  Rules
	strict bool
	path   string
	errors *Errors
}

// Make creates a new Validator for data.
func Make(data map[string]any, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// Strict makes keys without a rule fail with "Unrecognized option".
func (v *Validator) Strict() *Validator {
	v.strict = true
	return v
}

// Under prefixes reported field names with path.
func (v *Validator) Under(path string) *Validator {
	v.path = path
	return v
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors { return v.errors }

// ── Core validation loop ─────────────────────────────────────────────────────

func (v *Validator) validate() {
	v.errors = &Errors{}

	if v.strict {
		for key := range v.data {
			if _, ok := v.rules[key]; !ok {
				v.errors.add(v.field(key), fmt.Sprintf("Unrecognized option %q under %q.", key, v.parent()))
			}
		}
	}

	for field, ruleStr := range v.rules {
		value, present := v.data[field]

		for _, rule := range strings.Split(ruleStr, "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}

			// Parse rule name and optional parameter: min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")

			if !v.applyRule(field, value, present, name, param) {
				break // stop on first failure
			}
		}
	}
}

func (v *Validator) field(name string) string {
	if v.path == "" {
		return name
	}
	return v.path + "." + name
}

func (v *Validator) parent() string {
	if v.path == "" {
		return "root"
	}
	return v.path
}

// applyRule returns true if processing of the field should continue.
func (v *Validator) applyRule(field string, value any, present bool, rule, param string) bool {
	name := v.field(field)

	switch rule {
	case "required":
		if !present || value == nil {
			v.errors.add(name, fmt.Sprintf("The %s field is required.", name))
			return false
		}

	case "nullable":
		// Absent or null values skip the remaining rules.
		if !present || value == nil {
			return false
		}

	case "sometimes":
		if !present {
			return false
		}

	case "string":
		if _, ok := value.(string); !ok {
			v.errors.add(name, fmt.Sprintf("The %s must be a string, got %s.", name, typeName(value)))
			return false
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			v.errors.add(name, fmt.Sprintf("The %s field must be true or false.", name))
			return false
		}

	case "integer":
		if _, ok := AsInt(value); !ok {
			v.errors.add(name, fmt.Sprintf("The %s must be an integer.", name))
			return false
		}

	case "numeric":
		switch value.(type) {
		case int, int64, uint64, float64:
		default:
			v.errors.add(name, fmt.Sprintf("The %s must be a number.", name))
			return false
		}

	case "list":
		if _, ok := AsList(value); !ok {
			v.errors.add(name, fmt.Sprintf("The %s must be a list, got %s.", name, typeName(value)))
			return false
		}

	case "map":
		if _, ok := value.(map[string]any); !ok {
			v.errors.add(name, fmt.Sprintf("The %s must be a map, got %s.", name, typeName(value)))
			return false
		}

	case "strings":
		if _, ok := AsStrings(value); !ok {
			v.errors.add(name, fmt.Sprintf("The %s must be a list of strings.", name))
			return false
		}

	case "in":
		allowed := strings.Split(param, ",")
		for i := range allowed {
			allowed[i] = strings.TrimSpace(allowed[i])
		}
		candidates, ok := AsStrings(value)
		if !ok {
			s, isString := value.(string)
			if !isString {
				v.errors.add(name, fmt.Sprintf("The selected %s is invalid.", name))
				return false
			}
			candidates = []string{s}
		}
		for _, c := range candidates {
			if !contains(allowed, c) {
				v.errors.add(name, fmt.Sprintf("The selected %s %q is invalid; allowed: %s.", name, c, strings.Join(allowed, ", ")))
				return false
			}
		}

	case "min":
		n, _ := strconv.Atoi(param)
		if l := length(value); l < n {
			v.errors.add(name, fmt.Sprintf("The %s must have at least %d items.", name, n))
			return false
		}

	case "regex":
		re, err := regexp.Compile(param)
		s, isString := value.(string)
		if err != nil || !isString || !re.MatchString(s) {
			v.errors.add(name, fmt.Sprintf("The %s format is invalid.", name))
			return false
		}
	}

	return true
}

// ── Coercion helpers ─────────────────────────────────────────────────────────

// AsList accepts the list shapes decoders produce.
func AsList(value any) ([]any, bool) {
	switch val := value.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// AsStrings returns value as []string when every element is a string.
func AsStrings(value any) ([]string, bool) {
	if s, ok := value.([]string); ok {
		return s, true
	}
	list, ok := AsList(value)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// AsInt accepts the integer shapes YAML, TOML and HCL decoders produce.
func AsInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func length(value any) int {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s)
	}
	if list, ok := AsList(value); ok {
		return len(list)
	}
	if m, ok := value.(map[string]any); ok {
		return len(m)
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "map"
	}
	if _, ok := AsList(value); ok {
		return "list"
	}
	if _, ok := AsInt(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

// Validate runs rules against data in one call and returns the error bag.
func Validate(data map[string]any, rules Rules, strict bool) *Errors {
	v := Make(data, rules)
	if strict {
		v.Strict()
	}
	v.validate()
	return v.errors
}
