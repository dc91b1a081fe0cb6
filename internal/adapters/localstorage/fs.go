package localstorage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/logging"
)

// Space implements ports.ScratchSpace on a local working directory.
type Space struct {
	baseDir string
	logger  *slog.Logger
}

// NewSpace creates a scratch space rooted at baseDir. The directory is
// created lazily on first allocation.
func NewSpace(baseDir string, logger *slog.Logger) *Space {
	return &Space{
		baseDir: filepath.Clean(baseDir),
		logger:  logging.NewComponentLogger(logger, "scratch"),
	}
}

// Dir returns the working directory.
func (s *Space) Dir() string {
	return s.baseDir
}

// Allocate reserves a unique path for purpose. Nothing is written at the path.
func (s *Space) Allocate(purpose domain.Purpose, ext string) (domain.ScratchHandle, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return domain.ScratchHandle{}, fmt.Errorf("failed to create scratch directory %s: %w", s.baseDir, err)
	}

	id := uuid.NewString()
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	name := string(purpose) + "_" + id
	if ext != "" {
		name += "." + ext
	}

	return domain.ScratchHandle{
		Path:       filepath.Join(s.baseDir, name),
		Purpose:    purpose,
		CreationID: id,
	}, nil
}

// Release deletes each handle's file. Missing files count as already
// released; a failure on one handle is logged and the rest are still attempted.
func (s *Space) Release(handles ...domain.ScratchHandle) {
	for _, h := range handles {
		if h.Path == "" {
			continue
		}
		if filepath.Dir(filepath.Clean(h.Path)) != s.baseDir {
			s.logger.Warn("refusing to release path outside scratch directory",
				logging.String("path", h.Path),
				logging.Event("scratch_release_rejected"),
			)
			continue
		}

		err := os.Remove(h.Path)
		switch {
		case err == nil:
			s.logger.Debug("released scratch file",
				logging.String("path", h.Path),
				logging.String("purpose", string(h.Purpose)),
				logging.Event("scratch_released"),
			)
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Debug("scratch file already gone",
				logging.String("path", h.Path),
				logging.String("purpose", string(h.Purpose)),
			)
		default:
			s.logger.Warn("failed to release scratch file",
				logging.String("path", h.Path),
				logging.Error(err),
				logging.Event("scratch_release_failed"),
				logging.String(logging.FieldErrorHint, "check scratch dir permissions; the sweeper will retry"),
			)
		}
	}
}
