package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Field is a raw entry value as it arrives from a source: absent, a single
// scalar, or a list of scalars. Feeds disagree on which shape a key takes,
// so the normaliser collapses every Field before doing anything else.
type Field struct {
	values []any
}

// Absent is the zero Field.
func Absent() Field { return Field{} }

// Scalar wraps one value. A nil value or an empty string yields Absent.
func Scalar(v any) Field {
	if isEmpty(v) {
		return Field{}
	}
	return Field{values: []any{v}}
}

// List wraps several values, dropping empty ones.
func List(vs ...any) Field {
	f := Field{}
	for _, v := range vs {
		if !isEmpty(v) {
			f.values = append(f.values, v)
		}
	}
	return f
}

// IsAbsent reports whether the field carries no usable value.
func (f Field) IsAbsent() bool { return len(f.values) == 0 }

// Len is the number of values carried.
func (f Field) Len() int { return len(f.values) }

// Text returns the first value coerced to a trimmed string. ok is false when
// the field is absent or the text is blank.
func (f Field) Text() (string, bool) {
	if f.IsAbsent() {
		return "", false
	}
	s := strings.TrimSpace(toText(f.values[0]))
	return s, s != ""
}

// Time returns the first value of the field that can be read as a
// timestamp, converted to UTC. Unparseable values are skipped.
func (f Field) Time() (time.Time, bool) {
	for _, v := range f.values {
		if t, ok := toTime(v); ok {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case *string:
		return x == nil || *x == ""
	case *time.Time:
		return x == nil
	}
	return false
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *string:
		return *x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		return *x, !x.IsZero()
	case string:
		t, err := dateparse.ParseAny(strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case int64:
		// epoch milliseconds, as emitted by board APIs
		if x <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(x), true
	}
	return time.Time{}, false
}
