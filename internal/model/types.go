package model

// Tensor is a dense float32 array with an explicit shape.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Size returns the number of elements described by Shape.
func (t Tensor) Size() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type Prediction struct {
	Breed      string  `json:"breed"`
	Confidence float64 `json:"confidence"`
}

type PredictionResponse struct {
	Predictions []Prediction `json:"predictions"`
}

type URLRequest struct {
	URL       string `json:"url" binding:"required"`
	ModelName string `json:"model_name" binding:"required"`
}

// Info describes a model file found in the models directory.
type Info struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Loaded bool   `json:"loaded"`
}
