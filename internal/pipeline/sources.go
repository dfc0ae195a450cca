package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/storage"
)

// FileSource reads a weekly demand file and an optional on-hand file from
// disk. Both may be CSV or XLSX.
// DefaultOnHand, when set, fills SKUs the on-hand file does not list.
type FileSource struct {
	DemandPath    string
	OnHandPath    string
	DefaultOnHand *float64
}

func (s FileSource) Load(ctx context.Context) (dataset.ReadResult, map[string]float64, error) {
	data, err := readFile(s.DemandPath, dataset.WeeklyReaderFor(s.DemandPath))
	if err != nil {
		return dataset.ReadResult{}, nil, err
	}

	onHand := map[string]float64{}
	if s.OnHandPath != "" {
		if onHand, err = readFile(s.OnHandPath, dataset.OnHandReaderFor(s.OnHandPath)); err != nil {
			return dataset.ReadResult{}, nil, err
		}
	}

	return data, fillOnHand(data, onHand, s.DefaultOnHand), nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// StorageSource reads the same files from object storage.
type StorageSource struct {
	Storage       storage.ObjectStorage
	DemandKey     string
	OnHandKey     string
	DefaultOnHand *float64
}

func (s StorageSource) Load(ctx context.Context) (dataset.ReadResult, map[string]float64, error) {
	data, err := readObject(ctx, s.Storage, s.DemandKey, dataset.WeeklyReaderFor(s.DemandKey))
	if err != nil {
		return dataset.ReadResult{}, nil, err
	}

	onHand := map[string]float64{}
	if s.OnHandKey != "" {
		if onHand, err = readObject(ctx, s.Storage, s.OnHandKey, dataset.OnHandReaderFor(s.OnHandKey)); err != nil {
			return dataset.ReadResult{}, nil, err
		}
	}

	return data, fillOnHand(data, onHand, s.DefaultOnHand), nil
}

func readObject[T any](ctx context.Context, store storage.ObjectStorage, key string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := store.OpenObject(ctx, key)
	if err != nil {
		return zero, err
	}
	defer rc.Close()

	out, err := read(rc)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

// RepositorySource reads demand and inventory from the database.
type RepositorySource struct {
	Demand        repository.DemandRepository
	Inventory     repository.InventoryRepository
	DefaultOnHand *float64
}

func (s RepositorySource) Load(ctx context.Context) (dataset.ReadResult, map[string]float64, error) {
	data, err := s.Demand.LoadAll(ctx)
	if err != nil {
		return dataset.ReadResult{}, nil, err
	}

	onHand := map[string]float64{}
	if s.Inventory != nil {
		if onHand, err = s.Inventory.OnHand(ctx); err != nil {
			return dataset.ReadResult{}, nil, err
		}
	}

	return data, fillOnHand(data, onHand, s.DefaultOnHand), nil
}

func fillOnHand(data dataset.ReadResult, onHand map[string]float64, fallback *float64) map[string]float64 {
	if fallback == nil {
		return onHand
	}
	for _, s := range data.Series {
		if _, ok := onHand[s.SKU()]; !ok {
			onHand[s.SKU()] = *fallback
		}
	}
	return onHand
}
