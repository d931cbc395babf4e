package nodetype

import (
	"fmt"
	"reflect"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// CheckValue is the lightweight type check applied to every resolved input
// before an executor runs. Nil means "no value" and always passes.
func CheckValue(t graph.PortType, v any) error {
	if v == nil {
		return nil
	}
	ok := true
	switch t {
	case graph.PortTypeAny, graph.PortTypeFlow:
	case graph.PortTypeString:
		_, ok = v.(string)
	case graph.PortTypeBoolean:
		_, ok = v.(bool)
	case graph.PortTypeNumber:
		_, ok = AsFloat(v)
	case graph.PortTypeObject:
		k := reflect.TypeOf(v).Kind()
		ok = k == reflect.Map || k == reflect.Struct ||
			(k == reflect.Pointer && reflect.TypeOf(v).Elem().Kind() == reflect.Struct)
	case graph.PortTypeArray:
		k := reflect.TypeOf(v).Kind()
		ok = k == reflect.Slice || k == reflect.Array
	default:
		return fmt.Errorf("unknown port type %q", t)
	}
	if !ok {
		return fmt.Errorf("expected %s, got %T", t, v)
	}
	return nil
}

// AsFloat coerces a numeric value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
