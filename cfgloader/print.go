package cfgloader

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

const maskTag = "mask"

func printConfig(config any) {
	out, err := yaml.Marshal(Masked(config))
	if err != nil {
		slog.Error("[cfgloader]: failed to marshal config", "error", err.Error())
		return
	}
	slog.Info(fmt.Sprintf("Loaded config:\n%s", string(out)))
}

// Masked returns a copy of cfg where every field tagged `mask:"true"` is hidden.
// Strings become asterisks of the same length; other scalars become their zero value.
func Masked(cfg any) any {
	val := reflect.ValueOf(cfg)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	return maskValue(val, false).Interface()
}

func maskValue(val reflect.Value, hide bool) reflect.Value {
	if !val.IsValid() {
		return val
	}

	switch val.Kind() { //nolint:exhaustive // only kinds relevant to masking
	case reflect.Ptr:
		if val.IsNil() {
			return val
		}
		ptr := reflect.New(val.Elem().Type())
		ptr.Elem().Set(maskValue(val.Elem(), hide))
		return ptr

	case reflect.Struct:
		masked := reflect.New(val.Type()).Elem()
		for i := range val.NumField() {
			field := val.Type().Field(i)
			if !masked.Field(i).CanSet() || !val.Field(i).CanInterface() {
				continue
			}
			masked.Field(i).Set(maskValue(val.Field(i), hide || field.Tag.Get(maskTag) == "true"))
		}
		return masked

	case reflect.String:
		if hide {
			return reflect.ValueOf(strings.Repeat("*", len(val.String()))).Convert(val.Type())
		}
		return val

	case reflect.Map, reflect.Slice, reflect.Array, reflect.Interface:
		if hide {
			return reflect.Zero(val.Type())
		}
		return val

	default:
		if hide {
			return reflect.Zero(val.Type())
		}
		return val
	}
}
