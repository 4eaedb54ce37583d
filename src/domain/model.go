package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Model is the prediction capability the serving core depends on.
// Implementations report the variable order they were trained with and
// map a matrix in that column order to one probability per row.
type Model interface {
	VariableNames() []string
	Predict(Matrix) ([]float64, error)
}

// LogisticRegression is a fitted binary classifier restored from a JSON
// artifact written by the training pipeline.
type LogisticRegression struct {
	variableNames []string
	coefficients  []float64
	intercept     float64
}

type logisticRegressionJson struct {
	VariableNames []string  `json:"variable_names"`
	Coefficients  []float64 `json:"coefficients"`
	Intercept     float64   `json:"intercept"`
}

// LoadLogisticRegression reads an artifact from disk once at startup.
// The artifact is immutable afterwards.
func LoadLogisticRegression(path string) (*LogisticRegression, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	model := LogisticRegression{}
	if err := json.Unmarshal(content, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

func (self *LogisticRegression) UnmarshalJSON(data []byte) error {
	artifact := logisticRegressionJson{}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return err
	}

	if len(artifact.VariableNames) == 0 {
		return fmt.Errorf("Artifact declares no variables")
	}
	if len(artifact.Coefficients) != len(artifact.VariableNames) {
		return fmt.Errorf(
			"Artifact has %d coefficients for %d variables",
			len(artifact.Coefficients), len(artifact.VariableNames),
		)
	}

	self.variableNames = artifact.VariableNames
	self.coefficients = artifact.Coefficients
	self.intercept = artifact.Intercept

	return nil
}

func (self LogisticRegression) MarshalJSON() ([]byte, error) {
	return json.Marshal(logisticRegressionJson{
		VariableNames: self.variableNames,
		Coefficients:  self.coefficients,
		Intercept:     self.intercept,
	})
}

func (self *LogisticRegression) VariableNames() []string {
	return self.variableNames
}

// Predict returns the positive-class probability for every row. Rows must
// be in variable order; the sigmoid keeps every finite score in [0, 1].
func (self *LogisticRegression) Predict(matrix Matrix) ([]float64, error) {
	predictions := make([]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != len(self.coefficients) {
			return nil, fmt.Errorf("Row %d has %d values but the model expects %d", i, len(row), len(self.coefficients))
		}

		score := self.intercept
		for j, value := range row {
			score += self.coefficients[j] * value
		}

		probability := 1 / (1 + math.Exp(-score))
		if math.IsNaN(probability) {
			return nil, fmt.Errorf("Prediction for row %d is not a number", i)
		}
		predictions[i] = probability
	}

	return predictions, nil
}
