package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding an optional YAML config path.
const FileEnv = "CONFIG_FILE"

var (
	durationType = reflect.TypeOf(time.Duration(0))
	errTarget    = errors.New("config: target must be a non-nil pointer to struct")
)

// Validator is implemented by config structs that check themselves after loading.
type Validator interface {
	Validate() error
}

// LoadConfig fills target from the YAML file named by CONFIG_FILE, then applies
// environment overrides, then runs Validate when target implements Validator.
//
// A field's env key is its `env` tag, or the upper-cased field path joined with
// underscores (Backend.URL becomes BACKEND_URL). `env:"-"` skips the field.
// Durations accept "1500ms" style strings or integer nanoseconds; string slices are
// comma separated.
func LoadConfig(target interface{}) error {
	root, err := structValue(target)
	if err != nil {
		return err
	}

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := LoadFile(path, target); err != nil {
			return err
		}
	}

	if err := applyEnv(root, ""); err != nil {
		return err
	}

	if v, ok := target.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// LoadFile decodes a YAML document into target. Missing keys keep their current values.
func LoadFile(path string, target interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: decode yaml %s: %w", path, err)
	}
	return nil
}

func structValue(target interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, errTarget
	}
	return v.Elem(), nil
}

func applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Anonymous && fv.Kind() == reflect.Struct {
			if err := applyEnv(fv, prefix); err != nil {
				return err
			}
			continue
		}

		key, ok := envKey(sf, prefix)
		if !ok {
			continue
		}
		if fv.Kind() == reflect.Struct {
			if err := applyEnv(fv, key); err != nil {
				return err
			}
			continue
		}

		raw, set := os.LookupEnv(key)
		if !set {
			continue
		}
		if err := setValue(fv, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("config: parse %s: %w", key, err)
		}
	}
	return nil
}

func envKey(sf reflect.StructField, prefix string) (string, bool) {
	tag := sf.Tag.Get("env")
	switch {
	case tag == "-":
		return "", false
	case tag != "":
		return upper(tag), true
	case prefix == "":
		return upper(sf.Name), true
	default:
		return prefix + "_" + upper(sf.Name), true
	}
}

func upper(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

func setValue(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := parseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", fv.Type())
		}
		fv.Set(reflect.ValueOf(splitList(raw)).Convert(fv.Type()))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n), nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
