package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// Equal compares two field values the way the backends store them:
// JSON numbers equal Go integers, UUIDs equal their string form and so on.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return normalize(a) == normalize(b)
}

func normalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := x.Float64(); err == nil {
			return formatFloat(f)
		}
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(x).String()
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return normalize(inner)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String returns "" for missing and NULL fields.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return normalize(v)
}

func (r Record) Int64(key string) (int64, error) {
	switch x := r[key].(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("field %s: %v is not an integer", key, x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	case nil:
		return 0, fmt.Errorf("field %s is missing", key)
	default:
		return 0, fmt.Errorf("field %s: unexpected type %T", key, x)
	}
}

func (r Record) Bool(key string) bool {
	switch x := r[key].(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		return false
	}
}

// Time reports ok=false for NULL, missing and empty values.
func (r Record) Time(key string) (time.Time, bool, error) {
	return toTime(key, r[key])
}

func toTime(key string, v any) (time.Time, bool, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return x, !x.IsZero(), nil
	case string:
		if x == "" {
			return time.Time{}, false, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("field %s: cannot parse time %q", key, x)
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("field %s: %w", key, err)
		}
		return toTime(key, inner)
	default:
		return time.Time{}, false, fmt.Errorf("field %s: unexpected type %T", key, x)
	}
}

// UUID reports ok=false for NULL, missing and empty values.
func (r Record) UUID(key string) (uuid.UUID, bool, error) {
	switch x := r[key].(type) {
	case nil:
		return uuid.Nil, false, nil
	case uuid.UUID:
		return x, true, nil
	case [16]byte:
		return uuid.UUID(x), true, nil
	case string:
		if x == "" {
			return uuid.Nil, false, nil
		}
		id, err := uuid.Parse(x)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("field %s: %w", key, err)
		}
		return id, true, nil
	default:
		return uuid.Nil, false, fmt.Errorf("field %s: unexpected type %T", key, x)
	}
}
