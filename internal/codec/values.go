package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Untyped destinations (*any, *[]any, *map[string]any) decode to the same
// value model in every format:
//
//	integers        int64, or uint64 above math.MaxInt64
//	floating point  float64, integral values included
//	arrays          []any
//	objects         map[string]any
//
// Go int, int32, uint8 and friends therefore come back as int64.

// prepare rewrites the floats of untyped containers with float, so the
// format can tell 2.0 from 2. Structs and other typed values pass through.
func prepare(v any, float func(float64) any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return float(val)
	case float32:
		return float(float64(val))
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i := range val {
			out[i] = prepare(val[i], float)
		}
		return out
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = prepare(item, float)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 || (rv.Kind() == reflect.Slice && rv.IsNil()) {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = prepare(rv.Index(i).Interface(), float)
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = prepare(iter.Value().Interface(), float)
		}
		return out
	}
	return v
}

// floatText formats f so that it always reads back as a float
func floatText(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// normalizeInto applies normalize to untyped destinations
func normalizeInto(v any) {
	switch dst := v.(type) {
	case *any:
		*dst = normalize(*dst)
	case *[]any:
		for i := range *dst {
			(*dst)[i] = normalize((*dst)[i])
		}
	case *map[string]any:
		for k, val := range *dst {
			(*dst)[k] = normalize(val)
		}
	}
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		return number(val)
	case int:
		return int64(val)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return val
	case []any:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalize(val[k])
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func number(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
