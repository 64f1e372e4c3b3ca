// Package scenario loads frame descriptions from disk into transform
// records. The on-disk layout is a directory of JSON files, one frame per
// file.
package scenario

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/framecast/bridge/pkg/core"
)

// Loader parses a scenario description into transform records. The state
// manager delegates all parsing here so the store layer never touches the
// on-disk format.
type Loader interface {
	Load(path string) ([]core.TransformRecord, error)
}

// DirLoader reads every *.json file in a scenario directory.
type DirLoader struct {
	logger *slog.Logger
}

// NewDirLoader creates a DirLoader.
func NewDirLoader(logger *slog.Logger) *DirLoader {
	return &DirLoader{logger: logger}
}

// Load reads all frame descriptions under dir. It rejects frames with an
// empty child id, self-parenting frames, and duplicate child ids within one
// scenario.
func (l *DirLoader) Load(dir string) ([]core.TransformRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario dir: %w", err)
	}

	var records []core.TransformRecord
	seen := make(map[core.FrameID]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading frame file %s: %w", entry.Name(), err)
		}

		var rec core.TransformRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parsing frame file %s: %w", entry.Name(), err)
		}

		if rec.ChildFrameID == "" {
			return nil, fmt.Errorf("frame file %s: empty child_frame_id", entry.Name())
		}
		if rec.ChildFrameID == rec.ParentFrameID {
			return nil, fmt.Errorf("frame file %s: frame %q is its own parent", entry.Name(), rec.ChildFrameID)
		}
		if prev, dup := seen[rec.ChildFrameID]; dup {
			return nil, fmt.Errorf("frame file %s: child frame %q already defined in %s", entry.Name(), rec.ChildFrameID, prev)
		}
		seen[rec.ChildFrameID] = entry.Name()

		records = append(records, rec)
		if l.logger != nil {
			l.logger.Debug("Loaded frame description",
				"file", entry.Name(),
				"child", rec.ChildFrameID,
				"parent", rec.ParentFrameID,
				"active", rec.ActiveTransform)
		}
	}

	return records, nil
}
