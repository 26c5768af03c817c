package bus

import "github.com/godbus/dbus/v5"

// Hints converts bus hint variants to plain values. Structs such as
// image-data arrive as []any and nested variants are unwrapped.
func Hints(in map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = plain(v.Value())
	}
	if u, ok := urgency(out["urgency"]); ok {
		out["urgency"] = u
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case dbus.Variant:
		return plain(t.Value())
	case []any:
		vs := make([]any, len(t))
		for i, e := range t {
			vs[i] = plain(e)
		}
		return vs
	}
	return v
}

// urgency accepts the integer types some clients send instead of a byte.
func urgency(v any) (uint8, bool) {
	switch t := v.(type) {
	case uint8:
		return t, true
	case int16:
		return uint8(t), t >= 0 && t <= 2
	case uint16:
		return uint8(t), t <= 2
	case int32:
		return uint8(t), t >= 0 && t <= 2
	case uint32:
		return uint8(t), t <= 2
	case int64:
		return uint8(t), t >= 0 && t <= 2
	case uint64:
		return uint8(t), t <= 2
	}
	return 0, false
}
