package model

import "context"

// Model is a loaded classifier. Implementations must be safe for concurrent use.
type Model interface {
	// Predict returns one probability per class for a batch of one image.
	Predict(ctx context.Context, input Tensor) ([]float32, error)
	Close() error
}

// Loader turns a model file into a ready Model.
type Loader interface {
	Load(path string) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (Model, error)

func (f LoaderFunc) Load(path string) (Model, error) {
	return f(path)
}
