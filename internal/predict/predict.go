// Package predict reduces model output to ranked breed predictions.
package predict

import (
	"context"
	"math"
	"sort"

	"github.com/Brownie44l1/dogbreed-api/internal/core"
	"github.com/Brownie44l1/dogbreed-api/internal/labels"
	"github.com/Brownie44l1/dogbreed-api/internal/model"
	"github.com/Brownie44l1/dogbreed-api/internal/preprocess"
)

// Classify decodes encoded image bytes, prepares them in the given layout
// and runs them through m.
func Classify(ctx context.Context, m model.Model, data []byte, layout string, table *labels.Table) (model.PredictionResponse, error) {
	img, err := preprocess.Decode(data)
	if err != nil {
		return model.PredictionResponse{}, err
	}
	return Run(ctx, m, preprocess.Prepare(img, core.ImageSize, layout), table)
}

// Run performs inference and returns the top core.TopK predictions.
func Run(ctx context.Context, m model.Model, input model.Tensor, table *labels.Table) (model.PredictionResponse, error) {
	probs, err := m.Predict(ctx, input)
	if err != nil {
		return model.PredictionResponse{}, core.Internal(err, "prediction failed")
	}
	return model.PredictionResponse{Predictions: TopK(probs, table, core.TopK)}, nil
}

// TopK picks the k most probable classes in descending order, lowest
// index first on ties, and drops those at or below core.MinProbability.
// Confidences are percentages rounded to two decimals.
func TopK(probs []float32, table *labels.Table, k int) []model.Prediction {
	indices := make([]int, len(probs))
	for i := range indices {
		indices[i] = i
	}
	// NaN sorts after every real probability.
	sort.SliceStable(indices, func(a, b int) bool {
		pa, pb := probs[indices[a]], probs[indices[b]]
		if nanA, nanB := isNaN(pa), isNaN(pb); nanA != nanB {
			return nanB
		}
		return pa > pb
	})

	if k > len(indices) {
		k = len(indices)
	}

	predictions := make([]model.Prediction, 0, k)
	for _, idx := range indices[:k] {
		p := float64(probs[idx])
		if math.IsNaN(p) || p <= core.MinProbability {
			continue
		}
		predictions = append(predictions, model.Prediction{
			Breed:      table.Name(idx),
			Confidence: roundPercent(p),
		})
	}
	return predictions
}

func isNaN(f float32) bool {
	return f != f
}

// roundPercent converts a probability to a percentage with two decimals.
func roundPercent(p float64) float64 {
	return math.Round(p*100*100) / 100
}
