// Package usercontent manages the user's own image lists for the exploration
// and focus phases.
package usercontent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
)

// File names under the data directory.
const (
	ExplorationFile = "user_exploration.json"
	FocusFile       = "user_focus.json"
	LegacyFile      = "user_images.json"
	ImagesDir       = "UserImages"
)

// Library stores path lists in JSON files and imported copies in ImagesDir.
type Library struct {
	dir string
	log logger.Logger
}

// New returns a Library rooted at dir.
func New(dir string, log logger.Logger) *Library {
	if log == nil {
		log = logger.NewNop()
	}
	return &Library{dir: dir, log: log.With(logger.String("component", "usercontent"))}
}

// Paths returns the role's list, dropping entries whose file no longer
// exists. A pruned list is written back. Read failures yield an empty list.
func (l *Library) Paths(role model.ContentRole) []string {
	l.migrateLegacy()
	listPath := l.listPath(role)
	list, err := readList(listPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.log.Warn("read content list", logger.String("role", string(role)), logger.Error(err))
		}
		return []string{}
	}
	existing := make([]string, 0, len(list))
	for _, p := range list {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		existing = append(existing, p)
	}
	if len(existing) != len(list) {
		if err := writeList(listPath, existing); err != nil {
			l.log.Warn("rewrite pruned list", logger.String("role", string(role)), logger.Error(err))
		}
	}
	return existing
}

// Import copies files into ImagesDir under fresh unique names and replaces
// the role's list with the copies. Files that cannot be copied are skipped.
// When nothing is copied the existing list is left alone.
func (l *Library) Import(role model.ContentRole, files []string) (int, error) {
	imagesDir := filepath.Join(l.dir, ImagesDir)
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create images dir: %w", err)
	}
	copied := make([]string, 0, len(files))
	for _, src := range files {
		if src == "" {
			continue
		}
		ext := filepath.Ext(src)
		if ext == "" {
			ext = ".jpg"
		}
		dest := filepath.Join(imagesDir, strings.ReplaceAll(uuid.NewString(), "-", "")+ext)
		if err := copyFile(src, dest); err != nil {
			l.log.Warn("import file", logger.String("path", src), logger.Error(err))
			continue
		}
		copied = append(copied, dest)
	}
	if len(copied) == 0 {
		return 0, nil
	}
	if err := writeList(l.listPath(role), copied); err != nil {
		return 0, err
	}
	l.log.Info("imported content", logger.String("role", string(role)), logger.Int("count", len(copied)))
	return len(copied), nil
}

// Clear forgets the role's list. Imported copies stay on disk.
func (l *Library) Clear(role model.ContentRole) error {
	if err := os.Remove(l.listPath(role)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear %s list: %w", role, err)
	}
	return nil
}

// ClearAll removes both lists and every imported copy.
func (l *Library) ClearAll() error {
	err := multierr.Combine(
		l.Clear(model.RoleExploration),
		l.Clear(model.RoleFocus),
		os.RemoveAll(filepath.Join(l.dir, ImagesDir)),
	)
	if err != nil {
		return fmt.Errorf("failed to clear user content: %w", err)
	}
	return nil
}

// Counts returns the number of live entries per role.
func (l *Library) Counts() map[model.ContentRole]int {
	return map[model.ContentRole]int{
		model.RoleExploration: len(l.Paths(model.RoleExploration)),
		model.RoleFocus:       len(l.Paths(model.RoleFocus)),
	}
}

// Lists returns (exploration, focus).
func (l *Library) Lists() ([]string, []string) {
	return l.Paths(model.RoleExploration), l.Paths(model.RoleFocus)
}

func (l *Library) listPath(role model.ContentRole) string {
	if role == model.RoleFocus {
		return filepath.Join(l.dir, FocusFile)
	}
	return filepath.Join(l.dir, ExplorationFile)
}

// migrateLegacy moves a single legacy list into the exploration slot once.
func (l *Library) migrateLegacy() {
	legacy := filepath.Join(l.dir, LegacyFile)
	if _, err := os.Stat(legacy); err != nil {
		return
	}
	target := l.listPath(model.RoleExploration)
	if _, err := os.Stat(target); err == nil {
		return
	}
	if err := os.Rename(legacy, target); err != nil {
		l.log.Warn("migrate legacy list", logger.Error(err))
		return
	}
	l.log.Info("migrated legacy content list")
}

func readList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return list, nil
}

func writeList(path string, list []string) error {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
