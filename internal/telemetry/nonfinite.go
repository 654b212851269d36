package telemetry

import (
	"bytes"
	"math"
	"reflect"
	"strconv"
)

// Flight-controller bridges written against Python's json module emit the
// bare tokens NaN, Infinity and -Infinity, which encoding/json rejects.
// ReplaceNonFinite swaps them for stand-in numbers that no sensor reports
// and RestoreNonFinite turns the decoded stand-ins back into the values they
// replaced.
var (
	nanToken = []byte("NaN")
	infToken = []byte("Infinity")

	nanStandIn = math.SmallestNonzeroFloat64
	infStandIn = 2 * math.SmallestNonzeroFloat64

	nanLiteral = strconv.AppendFloat(nil, nanStandIn, 'g', -1, 64)
	infLiteral = strconv.AppendFloat(nil, infStandIn, 'g', -1, 64)
)

// ReplaceNonFinite returns p with every NaN and Infinity token outside a
// string replaced by a stand-in number. p is returned as is when it holds
// no such token.
func ReplaceNonFinite(p []byte) []byte {
	if !bytes.Contains(p, nanToken) && !bytes.Contains(p, infToken) {
		return p
	}

	out := make([]byte, 0, len(p)+16)
	inString, escaped := false, false
	for i := 0; i < len(p); i++ {
		b := p[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			out = append(out, b)
			continue
		}

		switch {
		case b == '"':
			inString = true
		case bytes.HasPrefix(p[i:], nanToken):
			out = append(out, nanLiteral...)
			i += len(nanToken) - 1
			continue
		case bytes.HasPrefix(p[i:], infToken):
			out = append(out, infLiteral...) // a leading '-' is already copied
			i += len(infToken) - 1
			continue
		}
		out = append(out, b)
	}

	return out
}

// RestoreNonFinite walks the exported fields of the value v points to and
// turns stand-in numbers back into NaN and ±Inf. Optional fields (pointers
// to float64) holding a stand-in are cleared instead: a non-finite optional
// reading means "not measured".
func RestoreNonFinite(v any) {
	restore(reflect.ValueOf(v))
}

func restore(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		if elem := v.Elem(); elem.Kind() == reflect.Float64 {
			if _, ok := fromStandIn(elem.Float()); ok && v.CanSet() {
				v.SetZero()
			}
			return
		}
		restore(v.Elem())

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				restore(f)
			}
		}

	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			restore(v.Index(i))
		}

	case reflect.Float64:
		if f, ok := fromStandIn(v.Float()); ok && v.CanSet() {
			v.SetFloat(f)
		}
	}
}

func fromStandIn(f float64) (float64, bool) {
	switch f {
	case nanStandIn, -nanStandIn:
		return math.NaN(), true
	case infStandIn:
		return math.Inf(1), true
	case -infStandIn:
		return math.Inf(-1), true
	default:
		return f, false
	}
}
