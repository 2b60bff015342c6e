package authclient

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Params holds outgoing query parameters.
type Params map[string]any

// QueryEncoder turns Params into a raw query string.
type QueryEncoder func(Params) (string, error)

// EncodeQuery serializes params the way the backend expects them:
//
//   - keys are emitted in sorted order;
//   - slices become repeated key[]=v pairs, without indices;
//   - nil values become a bare key with no "=";
//   - booleans become 1 and 0;
//   - nested maps become key[sub]=v;
//   - numbers and strings are sent as their underlying value, even when the
//     type has a String method (a time.Duration is its nanosecond count);
//   - other fmt.Stringer values, such as structs, are sent as String();
//   - everything else is percent-encoded.
//
// Brackets in keys are sent literally (ids[]=1). qs in its default mode
// would percent-encode them (ids%5B%5D=1); servers decode both the same,
// but a backend that compares raw query strings will see the difference.
//
// Unsupported values yield an Encoding ClientError.
func EncodeQuery(params Params) (string, error) {
	if len(params) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(params))
	for _, key := range keys {
		var err error
		parts, err = appendQueryValue(parts, key, params[key], false)
		if err != nil {
			return "", err
		}
	}

	return strings.Join(parts, "&"), nil
}

func appendQueryValue(parts []string, key string, value any, inList bool) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return append(parts, escapeQueryKey(key)), nil
	case bool:
		return append(parts, queryPair(key, boolDigit(v))), nil
	case string:
		return append(parts, queryPair(key, v)), nil
	case []byte:
		return append(parts, queryPair(key, string(v))), nil
	case time.Time:
		return append(parts, queryPair(key, v.Format(time.RFC3339))), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return append(parts, escapeQueryKey(key)), nil
		}
		if s, ok := value.(fmt.Stringer); ok && rv.Elem().Kind() == reflect.Struct {
			return append(parts, queryPair(key, s.String())), nil
		}
		return appendQueryValue(parts, key, rv.Elem().Interface(), inList)
	case reflect.Bool:
		return append(parts, queryPair(key, boolDigit(rv.Bool()))), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(parts, queryPair(key, strconv.FormatInt(rv.Int(), 10))), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return append(parts, queryPair(key, strconv.FormatUint(rv.Uint(), 10))), nil
	case reflect.Float32:
		return append(parts, queryPair(key, strconv.FormatFloat(rv.Float(), 'f', -1, 32))), nil
	case reflect.Float64:
		return append(parts, queryPair(key, strconv.FormatFloat(rv.Float(), 'f', -1, 64))), nil
	case reflect.String:
		return append(parts, queryPair(key, rv.String())), nil
	case reflect.Slice, reflect.Array:
		if inList {
			return nil, encodingError(key, "nested lists are not supported")
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return parts, nil
		}
		for i := 0; i < rv.Len(); i++ {
			var err error
			parts, err = appendQueryValue(parts, key+"[]", rv.Index(i).Interface(), true)
			if err != nil {
				return nil, err
			}
		}
		return parts, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, encodingError(key, "map keys must be strings")
		}
		subKeys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			subKeys = append(subKeys, k.String())
		}
		sort.Strings(subKeys)
		for _, sub := range subKeys {
			elem := rv.MapIndex(reflect.ValueOf(sub).Convert(rv.Type().Key()))
			var err error
			parts, err = appendQueryValue(parts, key+"["+sub+"]", elem.Interface(), inList)
			if err != nil {
				return nil, err
			}
		}
		return parts, nil
	default:
		if s, ok := value.(fmt.Stringer); ok {
			return append(parts, queryPair(key, s.String())), nil
		}
		return nil, encodingError(key, fmt.Sprintf("unsupported value of kind %s", rv.Kind()))
	}
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func queryPair(key, value string) string {
	return escapeQueryKey(key) + "=" + escapeQueryComponent(value)
}

// escapeQueryComponent percent-encodes like encodeURIComponent: spaces are
// %20, never "+".
func escapeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var bracketUnescaper = strings.NewReplacer("%5B", "[", "%5D", "]")

func escapeQueryKey(key string) string {
	return bracketUnescaper.Replace(escapeQueryComponent(key))
}

func encodingError(key, message string) *ClientError {
	return &ClientError{
		Type:      ErrorTypeEncoding,
		Message:   fmt.Sprintf("query parameter %q: %s", key, message),
		Timestamp: time.Now(),
	}
}
