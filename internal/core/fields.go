package core

// fields.go defines the closed set of field types. Each type carries its own
// conversion, validation and flattening; adding a type means adding one
// entry to fieldKinds, which the array length enforces.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FieldType is the data type of a mapped CSV column.
type FieldType int

const (
	FieldString FieldType = iota
	FieldNumber
	FieldBoolean
	FieldDate
	FieldArray
	FieldEmail
	FieldEnum

	fieldTypeCount
)

// DateLayout is the canonical date format of templates and exports.
const DateLayout = "2006-01-02"

type fieldKind struct {
	name string
	// convert turns a non-empty raw value into the stored value.
	convert func(raw string) any
	// check returns a violation message for a non-empty raw value, or "".
	check func(m FieldMapping, raw string) string
	// flatten renders a stored value back to its CSV form.
	flatten func(v any) string
}

var fieldKinds = [fieldTypeCount]fieldKind{
	FieldString: {
		name:    "string",
		convert: func(raw string) any { return raw },
		check:   func(FieldMapping, string) string { return "" },
		flatten: flattenScalar,
	},
	FieldNumber: {
		name:    "number",
		convert: convertNumber,
		check:   checkNumber,
		flatten: flattenScalar,
	},
	FieldBoolean: {
		name:    "boolean",
		convert: convertBoolean,
		check:   checkBoolean,
		flatten: flattenScalar,
	},
	FieldDate: {
		name:    "date",
		convert: convertDate,
		check:   checkDate,
		flatten: flattenDate,
	},
	FieldArray: {
		name:    "array",
		convert: convertArray,
		check:   func(FieldMapping, string) string { return "" },
		flatten: flattenArray,
	},
	FieldEmail: {
		name:    "email",
		convert: func(raw string) any { return raw },
		check:   checkEmail,
		flatten: flattenScalar,
	},
	FieldEnum: {
		name:    "enum",
		convert: func(raw string) any { return raw },
		check:   checkEnum,
		flatten: flattenScalar,
	},
}

func (t FieldType) kind() fieldKind {
	if t < 0 || t >= fieldTypeCount {
		return fieldKinds[FieldString]
	}
	return fieldKinds[t]
}

// String returns the type name.
func (t FieldType) String() string {
	if t < 0 || t >= fieldTypeCount {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return fieldKinds[t].name
}

// ParseFieldType parses a type name.
func ParseFieldType(s string) (FieldType, error) {
	for i, k := range fieldKinds {
		if k.name == s {
			return FieldType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

func (t FieldType) MarshalText() ([]byte, error) {
	if t < 0 || t >= fieldTypeCount {
		return nil, fmt.Errorf("invalid field type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	v, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// =============================================================================
// Conversion
// =============================================================================

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// convertNumber takes the leading integer of the value; anything else is 0.
func convertNumber(raw string) any {
	m := leadingInt.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func convertBoolean(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "1", "はい":
		return true
	}
	return false
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006-1-2", "2006/1/2"}

// convertDate returns a UTC midnight time.Time, or nil when unparseable.
func convertDate(raw string) any {
	if t, ok := parseDate(raw); ok {
		return t
	}
	return nil
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func convertArray(raw string) any {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == '、'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// Validation
// =============================================================================

var (
	numberPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
	datePattern   = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

var booleanLiterals = map[string]bool{
	"true": true, "false": true, "1": true, "0": true, "はい": true, "いいえ": true,
}

func checkNumber(m FieldMapping, raw string) string {
	if !numberPattern.MatchString(raw) {
		return fmt.Sprintf("%sは数値で入力してください", m.CSVColumn)
	}
	return ""
}

func checkDate(m FieldMapping, raw string) string {
	if datePattern.MatchString(raw) {
		if _, ok := parseDate(raw); ok {
			return ""
		}
	}
	return fmt.Sprintf("%sは正しい日付(YYYY-MM-DDまたはYYYY/MM/DD)で入力してください", m.CSVColumn)
}

func checkEmail(m FieldMapping, raw string) string {
	if !emailPattern.MatchString(raw) {
		return fmt.Sprintf("%sのメールアドレスの形式が正しくありません", m.CSVColumn)
	}
	return ""
}

func checkBoolean(m FieldMapping, raw string) string {
	if !booleanLiterals[strings.ToLower(raw)] {
		return fmt.Sprintf("%sはtrue/false/1/0/はい/いいえのいずれかで入力してください", m.CSVColumn)
	}
	return ""
}

func checkEnum(m FieldMapping, raw string) string {
	for _, opt := range m.Options {
		if raw == opt {
			return ""
		}
	}
	return fmt.Sprintf("%sは次のいずれかを入力してください: %s", m.CSVColumn, strings.Join(m.Options, ", "))
}

// =============================================================================
// Flattening
// =============================================================================

func flattenScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(DateLayout)
	default:
		return fmt.Sprint(t)
	}
}

// flattenDate also accepts RFC 3339 strings, which is how JSON stores return
// dates.
func flattenDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(DateLayout)
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.Format(DateLayout)
		}
		return t
	default:
		return flattenScalar(v)
	}
}

func flattenArray(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i := range t {
			parts[i] = flattenScalar(t[i])
		}
		return strings.Join(parts, ",")
	default:
		return flattenScalar(v)
	}
}
