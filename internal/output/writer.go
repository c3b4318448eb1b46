// Package output writes compiled project trees and merges their npm
// dependencies into the host manifest.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/project"
	"github.com/rendis/flowcode/pkg/schema"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// Writer writes project trees to disk.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a Writer. logger may be nil.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Writer{logger: logger}
}

// Result summarizes a write.
type Result struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// WriteTree writes every file of tree under dir. Files are first staged in a
// temporary directory beside dir; only when staging succeeds are they moved
// into place. Files replaced in dir are kept aside until every move has
// succeeded, so a failure part way through restores them and removes the
// files already moved: dir keeps either the old files or the whole new tree.
// Directories created for the tree may remain, empty, after a failure.
// Files in dir that the tree does not name are left alone.
func (w *Writer) WriteTree(ctx context.Context, dir string, tree project.Tree) (*Result, error) {
	files := tree.Flatten()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, outputErr(err, "resolve output dir %s", dir)
	}
	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, dirMode); err != nil {
		return nil, outputErr(err, "create %s", parent)
	}

	stage, err := os.MkdirTemp(parent, ".flowcode-stage-*")
	if err != nil {
		return nil, outputErr(err, "create staging dir")
	}
	defer os.RemoveAll(stage)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, outputErr(err, "write cancelled")
		}
		p := filepath.Join(stage, "new", filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(p), dirMode); err != nil {
			return nil, outputErr(err, "stage %s", f.Path)
		}
		if err := os.WriteFile(p, f.Content, fileMode); err != nil {
			return nil, outputErr(err, "stage %s", f.Path)
		}
	}

	tx := &swap{root: abs, stage: stage, moved: make([]string, 0, len(files))}
	for _, f := range files {
		if err := tx.move(f.Path); err != nil {
			if rbErr := tx.rollback(); rbErr != nil {
				w.logger.ErrorContext(ctx, "restore after failed write incomplete",
					slog.String("dir", abs), slog.String("error", rbErr.Error()))
			}
			return nil, err
		}
	}

	res := &Result{Dir: abs, Files: tx.moved}
	w.logger.InfoContext(ctx, "project tree written", slog.String("dir", abs), slog.Int("files", len(res.Files)))
	return res, nil
}

// swap moves staged files into root, remembering enough to undo it.
type swap struct {
	root   string
	stage  string
	moved  []string // tree paths now in place
	backed []string // tree paths whose previous file sits under stage/old
}

func (s *swap) target(rel string) string { return filepath.Join(s.root, filepath.FromSlash(rel)) }
func (s *swap) staged(rel string) string { return filepath.Join(s.stage, "new", filepath.FromSlash(rel)) }
func (s *swap) backup(rel string) string { return filepath.Join(s.stage, "old", filepath.FromSlash(rel)) }

func (s *swap) move(rel string) error {
	target := s.target(rel)
	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return outputErr(err, "create dir for %s", rel)
	}

	info, err := os.Lstat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return outputErr(err, "inspect %s", rel)
	case info.IsDir():
		return schema.NewErrorf(schema.ErrCodeOutput, "cannot write %s: a directory is in the way", rel)
	default:
		if err := os.MkdirAll(filepath.Dir(s.backup(rel)), dirMode); err != nil {
			return outputErr(err, "set aside %s", rel)
		}
		if err := os.Rename(target, s.backup(rel)); err != nil {
			return outputErr(err, "set aside %s", rel)
		}
		s.backed = append(s.backed, rel)
	}

	if err := os.Rename(s.staged(rel), target); err != nil {
		return outputErr(err, "move %s into place", rel)
	}
	s.moved = append(s.moved, rel)
	return nil
}

// rollback removes moved files and puts the set-aside ones back.
func (s *swap) rollback() error {
	var errs []error
	for _, rel := range s.moved {
		if err := os.Remove(s.target(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	for _, rel := range s.backed {
		if err := os.Rename(s.backup(rel), s.target(rel)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func outputErr(err error, format string, args ...any) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeOutput, "%s: %s", fmt.Sprintf(format, args...), err.Error()).WithCause(err)
}
