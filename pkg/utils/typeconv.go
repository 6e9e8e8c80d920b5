package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BartekS5/treemigrate/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ToBSON converts a record to an ordered document.
func ToBSON(r *models.Record) (bson.D, error) {
	doc := make(bson.D, 0, r.Len())
	for _, name := range r.Fields() {
		v, _ := r.Get(name)
		val, err := ToGoValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		doc = append(doc, bson.E{Key: name, Value: val})
	}
	return doc, nil
}

// ToGoValue unwraps a record value into a plain Go value. Date-looking strings
// become time.Time so they sort and compare in Mongo.
func ToGoValue(v models.Value) (interface{}, error) {
	switch v.Kind() {
	case models.KindNull:
		return nil, nil
	case models.KindString:
		s := v.Text()
		if t, ok := ParseDateTime(s); ok {
			return t, nil
		}
		return s, nil
	case models.KindNumber:
		return ConvertNumber(v.Num())
	case models.KindBool:
		return v.Bool(), nil
	case models.KindObject:
		var out interface{}
		if err := json.Unmarshal(v.Raw(), &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

// ConvertNumber keeps integers integral.
func ConvertNumber(n json.Number) (interface{}, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("cannot convert %q to number", n)
	}
	return f, nil
}

// ParseDateTime recognizes the date formats the platform API emits.
func ParseDateTime(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02") || s[4] != '-' || s[7] != '-' {
		return time.Time{}, false
	}
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z0700",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
