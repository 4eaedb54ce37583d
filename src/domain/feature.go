package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// FeatureNames is the list of model inputs in the order the artifact was
// trained with. Matrix columns and the artifact's variable list must both
// follow it exactly.
var FeatureNames = []string{
	"mean_radius",
	"mean_texture",
	"mean_perimeter",
	"mean_area",
	"mean_smoothness",
	"mean_compactness",
	"mean_concavity",
	"mean_concave_points",
	"mean_symmetry",
	"mean_fractal_dimension",
}

// Matrix holds one row per observation with columns in FeatureNames order.
type Matrix [][]float64

// validateFeature checks one feature column: a list of finite numbers with
// exactly rows entries. Pass a negative rows to skip the length check when
// the identifier list itself did not validate.
// Errors are reported per field, not per element.
func validateFeature(name string, value any, rows int) ([]float64, *ValidationError) {
	list, ok := value.([]any)
	if !ok {
		return nil, &ValidationError{name, "Input should be a valid list", value, "list_type"}
	}

	if rows >= 0 && len(list) != rows {
		return nil, &ValidationError{
			name,
			fmt.Sprintf("Input should have %d entries to match identifier, got %d", rows, len(list)),
			value,
			"length_mismatch",
		}
	}

	column := make([]float64, len(list))
	for i, element := range list {
		number, expectedType := asFiniteNumber(element)
		if expectedType != "" {
			var msg string
			switch expectedType {
			case "finite_number":
				msg = fmt.Sprintf("Input should be a finite number at index %d", i)
			default:
				msg = fmt.Sprintf("Input should be a valid number at index %d", i)
			}
			return nil, &ValidationError{name, msg, element, expectedType}
		}
		column[i] = number
	}

	return column, nil
}

// asFiniteNumber widens any JSON number representation to float64. The
// second return value is the error type when the element is rejected,
// empty otherwise.
func asFiniteNumber(element any) (float64, string) {
	var number float64

	switch v := element.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, "float_type"
		}
		number = f
	case float64:
		number = v
	case float32:
		number = float64(v)
	case int:
		number = float64(v)
	case int64:
		number = float64(v)
	default:
		return 0, "float_type"
	}

	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, "finite_number"
	}
	return number, ""
}
