package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/mmynk/gatherly/internal/storage"
)

// instant is a timestamp field that accepts every representation found in
// stored documents (BSON datetime or timestamp, seconds/nanoseconds wrapper
// documents, RFC 3339 strings, epoch milliseconds) and always writes a BSON
// datetime.
type instant time.Time

func (i instant) Time() time.Time { return time.Time(i) }

func (i instant) MarshalBSONValue() (bsontype.Type, []byte, error) {
	t := time.Time(i)
	if t.IsZero() {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(t)
}

func (i *instant) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var v any
	if t != bsontype.Null && t != bsontype.Undefined {
		if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&v); err != nil {
			return err
		}
	}
	parsed, err := storage.NormalizeTime(v)
	if err != nil {
		return err
	}
	*i = instant(parsed)
	return nil
}

func instantPtr(t *time.Time) *instant {
	if t == nil {
		return nil
	}
	i := instant(*t)
	return &i
}

func timePtr(i *instant) *time.Time {
	if i == nil {
		return nil
	}
	t := i.Time()
	return &t
}
