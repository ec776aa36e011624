// Package registry lists model snapshots present in the local asset cache.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/go-units"

	"doclingd/internal/common/fsutil"
	"doclingd/internal/engine"
	"doclingd/pkg/types"
)

// SnapshotScanner discovers cached snapshots laid out as
// <cache>/models--<org>--<name>/snapshots/<revision>/.
type SnapshotScanner struct {
	// Active marks snapshots of this model id.
	Active string
}

// NewSnapshotScanner returns a scanner that flags snapshots of active.
func NewSnapshotScanner(active string) *SnapshotScanner {
	return &SnapshotScanner{Active: active}
}

// Scan returns every snapshot under cacheDir sorted by id then revision.
// A missing cache directory yields no models.
func (s *SnapshotScanner) Scan(cacheDir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(cacheDir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if !fsutil.PathExists(abs) {
		return nil, nil
	}
	repos, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, repo := range repos {
		name, ok := strings.CutPrefix(repo.Name(), "models--")
		if !repo.IsDir() || !ok {
			continue
		}
		id := strings.ReplaceAll(name, "--", "/")
		snapRoot := filepath.Join(abs, repo.Name(), "snapshots")
		revs, err := os.ReadDir(snapRoot)
		if err != nil {
			continue
		}
		for _, rev := range revs {
			if !rev.IsDir() {
				continue
			}
			dir := filepath.Join(snapRoot, rev.Name())
			files, size, err := fsutil.DirStats(dir)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", dir, err)
			}
			models = append(models, types.Model{
				ID:         id,
				Revision:   rev.Name(),
				Path:       dir,
				Files:      len(files),
				SizeBytes:  size,
				Size:       units.HumanSize(float64(size)),
				Precisions: precisions(files),
				Active:     id == s.Active,
			})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].ID != models[j].ID {
			return models[i].ID < models[j].ID
		}
		return models[i].Revision < models[j].Revision
	})
	return models, nil
}

// precisions lists the distinct precisions of the weight shards in files.
func precisions(files []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range files {
		if !engine.IsShard(f) {
			continue
		}
		if _, p, ok := engine.ParseWeightFile(f); ok && !seen[string(p)] {
			seen[string(p)] = true
			out = append(out, string(p))
		}
	}
	sort.Strings(out)
	return out
}
