package service

import (
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/oncodata/cytosight/src/domain"
)

type InferenceService interface {
	Predict(domain.Matrix) ([]float64, error)
}

type inferenceService struct {
	logger zerolog.Logger
	model  domain.Model
}

// NewInferenceService wraps a loaded artifact. It fails when the
// artifact's variable order differs from the serving schema because a
// mismatch would silently misalign columns.
func NewInferenceService(model domain.Model, logger *zerolog.Logger) (InferenceService, error) {
	if err := checkVariableOrder(model); err != nil {
		return nil, err
	}

	return &inferenceService{
		logger: logger.With().Str("component", "InferenceService").Logger(),
		model:  model,
	}, nil
}

func checkVariableOrder(model domain.Model) error {
	if names := model.VariableNames(); !slices.Equal(names, domain.FeatureNames) {
		return errors.Errorf("Model was trained on variables %v but the serving schema is %v", names, domain.FeatureNames)
	}
	return nil
}

// Predict maps a validated matrix in canonical column order to one
// probability per row, preserving row order. Any failure fails the whole
// batch; there are no partial results.
func (self inferenceService) Predict(matrix domain.Matrix) ([]float64, error) {
	self.logger.Trace().Int("observations", len(matrix)).Msg("Predicting")

	if err := checkVariableOrder(self.model); err != nil {
		return nil, err
	}

	predictions, err := self.model.Predict(matrix)
	if err != nil {
		return nil, errors.WithMessage(err, "While predicting")
	}

	if len(predictions) != len(matrix) {
		return nil, errors.Errorf("Model returned %d predictions for %d observations", len(predictions), len(matrix))
	}
	for i, prediction := range predictions {
		if math.IsNaN(prediction) || prediction < 0 || prediction > 1 {
			return nil, errors.Errorf("Prediction %d is not a probability: %f", i, prediction)
		}
	}

	self.logger.Trace().Msg("Predicted")
	return predictions, nil
}
