package ratesource

import (
	"context"
	"fmt"
	"os"

	"github.com/vitos/loop_scanner/internal/domain"
)

// FileSource reads a rate snapshot from disk on every fetch.
type FileSource struct {
	name string
	path string
}

func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	rates, err := decodeRates(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return rates, nil
}
