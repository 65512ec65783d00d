// Package layering merges snapshots of the same type ordered from strongest to
// weakest. Persisted view state is layered over built-in defaults this way.
package layering

import "reflect"

// MergeOption tunes what counts as "unset" in a stronger layer.
type MergeOption func(*merger)

// EmptySlicesAsUnset treats a non-nil empty slice like a nil one, so the
// weaker layer's slice shows through. Struct fields tagged
// `layering:"keep_empty"` opt out.
func EmptySlicesAsUnset() MergeOption {
	return func(m *merger) { m.emptySlices = true }
}

// EmptyMapsAsUnset treats a non-nil empty map like a nil one.
func EmptyMapsAsUnset() MergeOption {
	return func(m *merger) { m.emptyMaps = true }
}

// ZeroScalarsAsUnset lets the weaker layer fill strings, numbers and bools
// that are zero in the stronger one. Use pointer fields when zero is a
// meaningful value.
func ZeroScalarsAsUnset() MergeOption {
	return func(m *merger) { m.zeroScalars = true }
}

type merger struct {
	emptySlices bool
	emptyMaps   bool
	zeroScalars bool
}

// MergeLayers composes snapshots ordered from strongest to weakest. Nil
// pointers, maps and slices in a stronger layer are filled from weaker ones;
// structs and maps merge field by field and key by key.
func MergeLayers[T any](layers ...T) T {
	return Merge(nil, layers...)
}

// Merge is MergeLayers with options.
func Merge[T any](opts []MergeOption, layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	m := &merger{}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	merged := cloneValue(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = m.merge(reflect.ValueOf(layers[i]), merged)
	}

	if !merged.IsValid() {
		return zero
	}
	target := reflect.TypeOf(zero)
	if target == nil {
		return merged.Interface().(T)
	}
	if merged.Type() != target {
		result := reflect.New(target).Elem()
		result.Set(merged.Convert(target))
		return result.Interface().(T)
	}
	return merged.Interface().(T)
}

func (m *merger) unset(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Map:
		return v.IsNil() || (m.emptyMaps && v.Len() == 0)
	case reflect.Slice:
		return v.IsNil() || (m.emptySlices && v.Len() == 0)
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return m.zeroScalars && v.IsZero()
	}
	return false
}

func (m *merger) merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}
	if m.unset(strong) {
		if weak.IsValid() && weak.Type() == strong.Type() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		result := reflect.New(strong.Type().Elem())
		result.Elem().Set(m.merge(strong.Elem(), weakElem))
		return result
	case reflect.Interface:
		var weakElem reflect.Value
		if weak.IsValid() && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		return m.merge(strong.Elem(), weakElem).Convert(strong.Type())
	case reflect.Struct:
		result := reflect.New(strong.Type()).Elem()
		result.Set(strong)
		var weakStruct reflect.Value
		if weak.IsValid() && weak.Type() == strong.Type() {
			weakStruct = weak
		}
		for i := 0; i < strong.NumField(); i++ {
			field := result.Field(i)
			if !field.CanSet() {
				continue
			}
			var weakField reflect.Value
			if weakStruct.IsValid() {
				weakField = weakStruct.Field(i)
			}
			fm := m
			if m.emptySlices && strong.Type().Field(i).Tag.Get("layering") == "keep_empty" {
				relaxed := *m
				relaxed.emptySlices = false
				fm = &relaxed
			}
			field.Set(fm.merge(strong.Field(i), weakField))
		}
		return result
	case reflect.Map:
		result := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
			iter := weak.MapRange()
			for iter.Next() {
				result.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
			}
		}
		iter := strong.MapRange()
		for iter.Next() {
			key := iter.Key()
			if existing := result.MapIndex(key); existing.IsValid() {
				result.SetMapIndex(key, m.merge(iter.Value(), existing))
				continue
			}
			result.SetMapIndex(key, cloneValue(iter.Value()))
		}
		return result
	case reflect.Slice:
		// Slices replace wholesale; element-wise merging would splice layouts.
		return cloneValue(strong)
	case reflect.Array:
		result := reflect.New(strong.Type()).Elem()
		for i := 0; i < strong.Len(); i++ {
			var weakElem reflect.Value
			if weak.IsValid() && weak.Kind() == reflect.Array && weak.Len() > i {
				weakElem = weak.Index(i)
			}
			result.Index(i).Set(m.merge(strong.Index(i), weakElem))
		}
		return result
	default:
		return cloneValue(strong)
	}
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return reflect.ValueOf(v.Interface())
	}
}
