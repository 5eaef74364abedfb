package trajectory

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/samuelfneumann/vtrace/utils/tensorutils"
	"github.com/samuelfneumann/vtrace/vtrace"
	"gorgonia.org/tensor"
)

// record is the JSON form of a Batch. Each field is a nested array
// whose nesting depth is the rank of the tensor. JSON has no numbers
// for non-finite values, which are written as the strings "NaN",
// "+Inf" and "-Inf".
type record struct {
	TargetLogProbs    interface{} `json:"target_log_probs"`
	BehaviourLogProbs interface{} `json:"behaviour_log_probs"`
	Discounts         interface{} `json:"discounts"`
	Rewards           interface{} `json:"rewards"`
	Values            interface{} `json:"values"`
	BootstrapValue    interface{} `json:"bootstrap_value"`
}

// returnsRecord is the JSON form of vtrace.Returns
type returnsRecord struct {
	Vs           interface{} `json:"vs"`
	PGAdvantages interface{} `json:"pg_advantages"`
}

// Decoder reads a stream of JSON encoded Batches, such as a JSON lines
// file with one Batch per line
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a new Decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{json.NewDecoder(r)}
}

// Decode reads the next Batch. At the end of the stream, Decode
// returns io.EOF.
func (d *Decoder) Decode() (Batch, error) {
	var r record
	if err := d.dec.Decode(&r); err == io.EOF {
		return Batch{}, io.EOF
	} else if err != nil {
		return Batch{}, fmt.Errorf("decode: %v", err)
	}

	var b Batch
	fields := []struct {
		name  string
		value interface{}
		dst   **tensor.Dense
	}{
		{"target_log_probs", r.TargetLogProbs, &b.TargetLogProbs},
		{"behaviour_log_probs", r.BehaviourLogProbs, &b.BehaviourLogProbs},
		{"discounts", r.Discounts, &b.Discounts},
		{"rewards", r.Rewards, &b.Rewards},
		{"values", r.Values, &b.Values},
		{"bootstrap_value", r.BootstrapValue, &b.BootstrapValue},
	}

	for _, f := range fields {
		if f.value == nil {
			return Batch{}, fmt.Errorf("decode: missing field %v", f.name)
		}
		shape, data, err := flatten(f.value)
		if err != nil {
			return Batch{}, fmt.Errorf("decode: %v: %v", f.name, err)
		}
		*f.dst = tensorutils.New(shape, data)
	}
	return b, nil
}

// ReadAll decodes all Batches from r
func ReadAll(r io.Reader) ([]Batch, error) {
	dec := NewDecoder(r)
	var batches []Batch
	for {
		b, err := dec.Decode()
		if err == io.EOF {
			return batches, nil
		} else if err != nil {
			return nil, fmt.Errorf("readAll: batch %v: %v", len(batches), err)
		}
		batches = append(batches, b)
	}
}

// Encoder writes JSON lines of Batches or V-trace returns
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder returns a new Encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{json.NewEncoder(w)}
}

// EncodeBatch writes a Batch as a single line of JSON
func (e *Encoder) EncodeBatch(b Batch) error {
	var r record
	var err error
	if r.TargetLogProbs, err = nest(b.TargetLogProbs); err != nil {
		return fmt.Errorf("encodeBatch: target log probs: %v", err)
	}
	if r.BehaviourLogProbs, err = nest(b.BehaviourLogProbs); err != nil {
		return fmt.Errorf("encodeBatch: behaviour log probs: %v", err)
	}
	if r.Discounts, err = nest(b.Discounts); err != nil {
		return fmt.Errorf("encodeBatch: discounts: %v", err)
	}
	if r.Rewards, err = nest(b.Rewards); err != nil {
		return fmt.Errorf("encodeBatch: rewards: %v", err)
	}
	if r.Values, err = nest(b.Values); err != nil {
		return fmt.Errorf("encodeBatch: values: %v", err)
	}
	if r.BootstrapValue, err = nest(b.BootstrapValue); err != nil {
		return fmt.Errorf("encodeBatch: bootstrap value: %v", err)
	}
	return e.enc.Encode(r)
}

// EncodeReturns writes V-trace returns as a single line of JSON
func (e *Encoder) EncodeReturns(r vtrace.Returns) error {
	vs, err := nest(r.Vs)
	if err != nil {
		return fmt.Errorf("encodeReturns: vs: %v", err)
	}
	pg, err := nest(r.PGAdvantages)
	if err != nil {
		return fmt.Errorf("encodeReturns: pg advantages: %v", err)
	}
	return e.enc.Encode(returnsRecord{Vs: vs, PGAdvantages: pg})
}

// DecodeReturns reads a single line of JSON written by EncodeReturns
func DecodeReturns(data []byte) (vtrace.Returns, error) {
	var r returnsRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return vtrace.Returns{}, fmt.Errorf("decodeReturns: %v", err)
	}

	shape, vs, err := flatten(r.Vs)
	if err != nil {
		return vtrace.Returns{}, fmt.Errorf("decodeReturns: vs: %v", err)
	}
	pgShape, pg, err := flatten(r.PGAdvantages)
	if err != nil {
		return vtrace.Returns{}, fmt.Errorf("decodeReturns: pg advantages: "+
			"%v", err)
	}
	return vtrace.Returns{
		Vs:           tensorutils.New(shape, vs),
		PGAdvantages: tensorutils.New(pgShape, pg),
	}, nil
}

// flatten converts a nested JSON array of numbers into its shape and
// row-major data. Ragged arrays are rejected.
func flatten(v interface{}) ([]int, []float32, error) {
	switch v := v.(type) {
	case float64:
		return nil, []float32{float32(v)}, nil

	case string:
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || !(math32.IsNaN(float32(f)) || math32.IsInf(float32(f), 0)) {
			return nil, nil, fmt.Errorf("illegal element %q", v)
		}
		return nil, []float32{float32(f)}, nil

	case []interface{}:
		if len(v) == 0 {
			return nil, nil, fmt.Errorf("empty array")
		}

		var childShape []int
		var data []float32
		for i, child := range v {
			shape, childData, err := flatten(child)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				childShape = shape
			} else if !tensorutils.SameShape(shape, childShape) {
				return nil, nil, fmt.Errorf("ragged array: element %v has "+
					"shape %v, element 0 has shape %v", i, shape, childShape)
			}
			data = append(data, childData...)
		}
		return append([]int{len(v)}, childShape...), data, nil
	}
	return nil, nil, fmt.Errorf("illegal element of type %T", v)
}

// nest converts a tensor into nested slices suitable for JSON encoding
func nest(t *tensor.Dense) (interface{}, error) {
	data, err := tensorutils.Float32s(t)
	if err != nil {
		return nil, err
	}
	return nestData(t.Shape(), data), nil
}

func nestData(shape []int, data []float32) interface{} {
	if len(shape) == 0 {
		return element(data[0])
	}
	out := make([]interface{}, shape[0])
	if shape[0] == 0 {
		return out
	}
	size := len(data) / shape[0]
	for i := range out {
		out[i] = nestData(shape[1:], data[i*size:(i+1)*size])
	}
	return out
}

// element returns the JSON form of a single value
func element(v float32) interface{} {
	switch {
	case math32.IsNaN(v):
		return "NaN"
	case math32.IsInf(v, 1):
		return "+Inf"
	case math32.IsInf(v, -1):
		return "-Inf"
	}
	return v
}
