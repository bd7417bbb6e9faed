package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mmynk/gatherly/internal/errdef"
)

// NormalizeTime converts the timestamp representations found in stored
// records into a UTC time.Time:
//   - time.Time and *time.Time
//   - BSON datetime and timestamp values
//   - wrapper documents {seconds, nanoseconds} and {_seconds, _nanoseconds}
//   - RFC 3339 strings
//   - epoch milliseconds as integers, floats or json.Number
//
// nil yields the zero time. Anything else is a ValidationError.
func NormalizeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, nil
		}
		return t.UTC(), nil
	case primitive.DateTime:
		return t.Time().UTC(), nil
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC(), nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, errdef.NewValidation("invalid timestamp %q: %v", t, err)
		}
		return parsed.UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int32:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, errdef.NewValidation("invalid timestamp %v", t)
		}
		return time.UnixMilli(int64(t)).UTC(), nil
	case json.Number:
		ms, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return time.Time{}, errdef.NewValidation("invalid timestamp %q: %v", t, err)
		}
		return NormalizeTime(ms)
	case map[string]any:
		return fromWrapper(t)
	case primitive.M:
		return fromWrapper(map[string]any(t))
	case primitive.D:
		return fromWrapper(t.Map())
	}
	return time.Time{}, errdef.NewValidation("unsupported timestamp type %T", v)
}

// fromWrapper reads the seconds/nanoseconds wrapper documents written by
// document-store SDKs, with or without the leading underscore.
func fromWrapper(m map[string]any) (time.Time, error) {
	sec, ok := m["seconds"]
	if !ok {
		sec, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, errdef.NewValidation("timestamp document has no seconds field")
	}
	nsec, ok := m["nanoseconds"]
	if !ok {
		nsec = m["_nanoseconds"]
	}
	s, err := toInt64(sec)
	if err != nil {
		return time.Time{}, err
	}
	var ns int64
	if nsec != nil {
		if ns, err = toInt64(nsec); err != nil {
			return time.Time{}, err
		}
	}
	return time.Unix(s, ns).UTC(), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, errdef.NewValidation("unsupported timestamp component %T", v)
}
