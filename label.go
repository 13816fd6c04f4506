package rollcall

import (
	"encoding/json"
	"fmt"
)

// Label is the per-frame classification outcome.
type Label int

const (
	// NoLabel is the zero value, used before any frame has been observed.
	NoLabel Label = iota
	Negative
	Positive
	SemiPositive
)

// NotAvailable is reported in place of a label when no frame was processed.
const NotAvailable = "N/A"

func (l Label) String() string {
	switch l {
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	case SemiPositive:
		return "semi-positive"
	default:
		return NotAvailable
	}
}

// ParseLabel converts the textual representation back into a Label.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "negative":
		return Negative, nil
	case "positive":
		return Positive, nil
	case "semi-positive":
		return SemiPositive, nil
	case NotAvailable, "":
		return NoLabel, nil
	}
	return NoLabel, fmt.Errorf("unknown label %q", s)
}

// MarshalJSON implements json.Marshaler.
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
