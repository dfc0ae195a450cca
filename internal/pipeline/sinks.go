package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/storage"
)

// WriterSink streams decision records to w.
type WriterSink struct {
	W      io.Writer
	Format string
}

func (s WriterSink) Write(ctx context.Context, result RunResult) error {
	return dataset.WriteDecisions(s.W, s.Format, result.Decisions())
}

// FileSink writes decisions to Path and, when ExclusionsPath is set, the
// excluded SKUs to a second CSV. Either path may be empty.
type FileSink struct {
	Path           string
	Format         string
	ExclusionsPath string
}

func (s FileSink) Write(ctx context.Context, result RunResult) error {
	if s.Path != "" {
		if err := writeFile(s.Path, func(w io.Writer) error {
			return dataset.WriteDecisions(w, s.Format, result.Decisions())
		}); err != nil {
			return err
		}
	}

	if s.ExclusionsPath == "" {
		return nil
	}
	return writeFile(s.ExclusionsPath, func(w io.Writer) error {
		return dataset.WriteExclusionsCSV(w, result.Exclusions())
	})
}

func writeFile(p string, write func(io.Writer) error) error {
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return f.Close()
}

// StorageSink uploads decisions and exclusions under Prefix/<run id>/.
type StorageSink struct {
	Storage storage.ObjectStorage
	Prefix  string
	Format  string
}

func (s StorageSink) Write(ctx context.Context, result RunResult) error {
	ext := s.Format
	if ext == "" {
		ext = dataset.FormatCSV
	}
	dir := path.Join(s.Prefix, result.Run.ID)

	var decisions bytes.Buffer
	if err := dataset.WriteDecisions(&decisions, s.Format, result.Decisions()); err != nil {
		return err
	}
	if err := s.Storage.UploadObject(ctx, path.Join(dir, "decisions."+ext), decisions.Bytes()); err != nil {
		return err
	}

	var exclusions bytes.Buffer
	if err := dataset.WriteExclusionsCSV(&exclusions, result.Exclusions()); err != nil {
		return err
	}
	return s.Storage.UploadObject(ctx, path.Join(dir, "exclusions.csv"), exclusions.Bytes())
}

// RepositorySink persists the run in the decision repository.
type RepositorySink struct {
	Repo repository.DecisionRepository
}

func (s RepositorySink) Write(ctx context.Context, result RunResult) error {
	return s.Repo.SaveOutcomes(ctx, result.Run, result.Decisions(), result.Exclusions())
}
