package apiclient

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"

	"github.com/google/go-querystring/query"
)

// encodeQuery turns a Request.Query into url.Values. With prune set, keys
// whose value is "", nil or a nil pointer are dropped. Zero numbers and false
// survive.
func encodeQuery(q any, prune bool) (url.Values, error) {
	out := url.Values{}
	if q == nil {
		return out, nil
	}

	switch v := q.(type) {
	case url.Values:
		for key, vals := range v {
			for _, val := range vals {
				if prune && val == "" {
					continue
				}
				out.Add(key, val)
			}
		}
		return out, nil
	case map[string]string:
		for key, val := range v {
			if prune && val == "" {
				continue
			}
			out.Set(key, val)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			addAny(out, key, v[key], prune)
		}
		return out, nil
	}

	rv := reflect.ValueOf(q)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return out, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("unsupported query type %T", q)
	}

	vals, err := query.Values(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return encodeQuery(vals, prune)
}

func addAny(out url.Values, key string, val any, prune bool) {
	if val == nil {
		if !prune {
			out.Add(key, "")
		}
		return
	}

	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			if !prune {
				out.Add(key, "")
			}
			return
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			addAny(out, key, rv.Index(i).Interface(), prune)
		}
		return
	}

	s := fmt.Sprint(rv.Interface())
	if prune && s == "" {
		return
	}
	out.Add(key, s)
}
