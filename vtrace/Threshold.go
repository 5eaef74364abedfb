package vtrace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/samuelfneumann/vtrace/utils/floatutils"
)

type thresholdKind int

const (
	unset thresholdKind = iota
	noClip
	clipAt
)

// Threshold is an optional upper bound on importance ratios. The zero
// Threshold is unset and is rejected by Config.Validate: callers must
// choose between ClipAt and NoClip explicitly, since unclipped ratios
// are a common source of unstable targets.
type Threshold struct {
	kind  thresholdKind
	value float32
}

// ClipAt returns a Threshold which clips importance ratios at value
func ClipAt(value float32) Threshold {
	return Threshold{kind: clipAt, value: value}
}

// NoClip returns a Threshold which disables clipping
func NoClip() Threshold {
	return Threshold{kind: noClip}
}

// IsSet returns whether a choice was made for the Threshold
func (t Threshold) IsSet() bool {
	return t.kind != unset
}

// Value returns the clipping bound and whether clipping is enabled
func (t Threshold) Value() (float32, bool) {
	return t.value, t.kind == clipAt
}

// Apply clips each ratio in place if clipping is enabled
func (t Threshold) Apply(rhos []float32) {
	if t.kind == clipAt {
		floatutils.MinScalar(rhos, t.value)
	}
}

// validate checks that the Threshold was set and holds a usable bound
func (t Threshold) validate(name string) error {
	switch t.kind {
	case unset:
		return fmt.Errorf("%v must be set explicitly, use NoClip() to "+
			"disable clipping", name)
	case clipAt:
		if math32.IsNaN(t.value) || t.value < 0 {
			return fmt.Errorf("%v must be non-negative, have(%v)", name,
				t.value)
		}
	}
	return nil
}

func (t Threshold) String() string {
	switch t.kind {
	case noClip:
		return "none"
	case clipAt:
		return fmt.Sprintf("%v", t.value)
	}
	return "unset"
}

// MarshalJSON implements the json.Marshaler interface. Clipping
// thresholds are encoded as numbers and disabled clipping as null.
func (t Threshold) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case noClip:
		return []byte("null"), nil
	case clipAt:
		return json.Marshal(t.value)
	}
	return nil, fmt.Errorf("marshalJSON: cannot encode unset threshold")
}

// UnmarshalJSON implements the json.Unmarshaler interface. A null
// decodes to NoClip; a field that is missing altogether leaves the
// Threshold unset.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = NoClip()
		return nil
	}

	var value float32
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("unmarshalJSON: threshold must be a number or "+
			"null: %v", err)
	}
	*t = ClipAt(value)
	return nil
}
