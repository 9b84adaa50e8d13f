// Package omitnilpointers prunes nil-valued entries from payload maps
// before marshaling, so optional state is absent from the wire instead
// of serialized as null.
package omitnilpointers

import (
	"reflect"
)

func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				continue
			}
			omitted[key] = v.Elem().Interface()
			continue
		}

		omitted[key] = value
	}

	return omitted
}
