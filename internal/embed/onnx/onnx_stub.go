//go:build !onnx

package onnx

import (
	"context"
	"fmt"
)

// Config configures the local embedder. See onnx.go for the real fields;
// the stub keeps the type available without the build tag.
type Config struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
	Dimensions    int
}

// Embedder is unavailable without the onnx build tag.
type Embedder struct{}

// New fails when the binary was built without onnx support.
func New(Config) (*Embedder, error) {
	return nil, fmt.Errorf("onnx: built without onnx support (rebuild with -tags onnx)")
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("onnx: built without onnx support")
}

func (e *Embedder) Dimensions() int { return 0 }

func (e *Embedder) Close() error { return nil }
