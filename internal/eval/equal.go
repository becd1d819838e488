package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// Equal reports whether actual equals expected. Both sides are normalized
// through JSON first, so an int and a float with the same value are equal,
// a tuple equals a list, and a bool never equals a number. Values that
// cannot be encoded as JSON are never equal.
func Equal(expected, actual any) bool {
	ok, err := Compare(expected, actual)
	return err == nil && ok
}

// Compare is Equal but reports values that cannot be normalized.
func Compare(expected, actual any) (bool, error) {
	e, err := normalize(expected)
	if err != nil {
		return false, fmt.Errorf("expected value: %w", err)
	}
	a, err := normalize(actual)
	if err != nil {
		return false, err
	}
	return equalJSON(e, a), nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func equalJSON(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && equalNumber(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !equalJSON(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// equalNumber compares exactly, so large integers do not collapse through float64.
func equalNumber(a, b json.Number) bool {
	if a == b {
		return true
	}
	ar, ok := new(big.Rat).SetString(a.String())
	if !ok {
		return false
	}
	br, ok := new(big.Rat).SetString(b.String())
	if !ok {
		return false
	}
	return ar.Cmp(br) == 0
}
