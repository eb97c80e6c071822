package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

const gridColumns = 12

// Width is a responsive 12-column width. Documents may declare a single
// number, an array `[mobile, tablet, desktop]`, or the same array encoded as
// a string (`"[12, 6]"`). The decoded form is always the array.
type Width []int

// Responsive spans per breakpoint.
type Responsive struct {
	Mobile  int `json:"mobile"`
	Tablet  int `json:"tablet"`
	Desktop int `json:"desktop"`
}

// UnmarshalJSON accepts number, array, or string notations. Unparseable
// strings decode to an empty width (full span).
func (w *Width) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: width: %w", err)
	}
	*w = widthFrom(raw)
	return nil
}

func widthFrom(raw any) Width {
	switch typed := raw.(type) {
	case nil:
		return nil
	case float64:
		return Width{int(typed)}
	case []any:
		out := make(Width, 0, len(typed))
		for _, entry := range typed {
			if n, ok := entry.(float64); ok {
				out = append(out, int(n))
			}
		}
		return out
	case string:
		var nested any
		if err := json.Unmarshal([]byte(strings.TrimSpace(typed)), &nested); err != nil {
			return nil
		}
		if _, isString := nested.(string); isString {
			return nil
		}
		return widthFrom(nested)
	default:
		return nil
	}
}

// Responsive expands the width using the 1/2/3 value convention: one value
// applies everywhere, two values split mobile+tablet from desktop, three are
// explicit.
func (w Width) Responsive() Responsive {
	switch len(w) {
	case 0:
		return Responsive{Mobile: gridColumns, Tablet: gridColumns, Desktop: gridColumns}
	case 1:
		return Responsive{Mobile: w[0], Tablet: w[0], Desktop: w[0]}
	case 2:
		return Responsive{Mobile: w[0], Tablet: w[0], Desktop: w[1]}
	default:
		return Responsive{Mobile: w[0], Tablet: w[1], Desktop: w[2]}
	}
}

// Classes renders grid class names for the width.
func (w Width) Classes() string {
	r := w.Responsive()
	return fmt.Sprintf("col-xs-%d col-md-%d col-lg-%d", r.Mobile, r.Tablet, r.Desktop)
}
