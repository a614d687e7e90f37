package embedding

import "context"

// Model runs feature extraction. For every input text it returns a matrix of
// per-token feature rows; backends that only expose pooled sentence vectors
// return a single row per text.
type Model interface {
	FeatureExtract(ctx context.Context, texts []string) ([][][]float32, error)
}

// Loader constructs and connects a Model. It is invoked at most once per
// successful load; a failed load is retried on the next call.
type Loader func(ctx context.Context) (Model, error)

// Closer is implemented by models holding resources that need releasing.
type Closer interface {
	Close() error
}
