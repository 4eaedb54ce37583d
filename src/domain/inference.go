package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slices"
)

// ValidationError describes exactly one rejected field of a request.
// The JSON keys are part of the wire contract.
type ValidationError struct {
	FieldName     string `json:"field_name"`
	ErrorMsg      string `json:"error_msg"`
	ValueReceived any    `json:"value_received"`
	ExpectedType  string `json:"expected_type"`
}

// InferenceRequest is the raw request body. Fields are kept untyped so
// that validation can report every violation instead of failing on the
// first mismatch while decoding.
type InferenceRequest struct {
	Identifier any
	Data       any

	// Unknown holds body fields besides identifier and data.
	// They are rejected during validation.
	Unknown map[string]any

	hasIdentifier bool
	hasData       bool
}

func (self *InferenceRequest) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return err
	}

	*self = InferenceRequest{}
	for key, value := range raw {
		switch key {
		case "identifier":
			self.Identifier = value
			self.hasIdentifier = true
		case "data":
			self.Data = value
			self.hasData = true
		default:
			if self.Unknown == nil {
				self.Unknown = map[string]any{}
			}
			self.Unknown[key] = value
		}
	}

	return nil
}

// Observations is the validated form of a request: the identifiers and
// the matrix row i belongs to identifier i.
type Observations struct {
	Identifier []string
	Matrix     Matrix
}

// InferenceResult is the success response body.
type InferenceResult struct {
	Identifier  []string  `json:"identifier"`
	Predictions []float64 `json:"predictions"`
}

// Validate checks the request against the feature schema and the
// identifier parity rule, collecting every violation. Inference must only
// run on requests that validated without a single error.
func (self InferenceRequest) Validate() (*Observations, []ValidationError) {
	errs := []ValidationError{}

	var identifier []string
	identifierOk := false
	if self.Identifier == nil && !self.hasIdentifier {
		errs = append(errs, ValidationError{"identifier", "Field required", nil, "missing"})
	} else if list, ok := self.Identifier.([]any); !ok {
		errs = append(errs, ValidationError{"identifier", "Input should be a valid list", self.Identifier, "list_type"})
	} else {
		identifier = make([]string, len(list))
		identifierOk = true
		for i, element := range list {
			if s, ok := element.(string); ok {
				identifier[i] = s
			} else {
				errs = append(errs, ValidationError{
					"identifier",
					fmt.Sprintf("Input should be a valid string at index %d", i),
					element,
					"string_type",
				})
				identifierOk = false
				break
			}
		}
	}

	rows := -1
	if identifierOk {
		rows = len(identifier)
	}

	var columns [][]float64
	if self.Data == nil && !self.hasData {
		errs = append(errs, ValidationError{"data", "Field required", nil, "missing"})
	} else if data, ok := self.Data.(map[string]any); !ok {
		errs = append(errs, ValidationError{"data", "Input should be a valid object", self.Data, "dict_type"})
	} else {
		columns = make([][]float64, 0, len(FeatureNames))
		for _, name := range FeatureNames {
			value, ok := data[name]
			if !ok {
				errs = append(errs, ValidationError{name, "Field required", nil, "missing"})
				continue
			}
			if column, err := validateFeature(name, value, rows); err != nil {
				errs = append(errs, *err)
			} else {
				columns = append(columns, column)
			}
		}
		for _, name := range unknownFields(data) {
			errs = append(errs, ValidationError{name, "Extra inputs are not permitted", data[name], "extra_forbidden"})
		}
	}

	for _, name := range sortedKeys(self.Unknown) {
		errs = append(errs, ValidationError{name, "Extra inputs are not permitted", self.Unknown[name], "extra_forbidden"})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	matrix := make(Matrix, rows)
	for i := range matrix {
		row := make([]float64, len(columns))
		for j, column := range columns {
			row[j] = column[i]
		}
		matrix[i] = row
	}

	return &Observations{Identifier: identifier, Matrix: matrix}, nil
}

func unknownFields(data map[string]any) []string {
	extra := []string{}
	for key := range data {
		if !slices.Contains(FeatureNames, key) {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	return extra
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
