// Package layout derives on-disk directory and file paths from a tier
// root, a timestamp, and a configured time-bucketing resolution.
package layout

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto/tstamp"
)

// Resolution is the depth of time-based subdirectories isto creates
// beneath a tier root.
type Resolution int

const (
	// Days lays out content as <root>/YYYY-MM-DD/<id>.
	Days Resolution = iota
	// Hours lays out content as <root>/YYYY-MM-DD/HH/<id>.
	Hours
	// Minutes lays out content as <root>/YYYY-MM-DD/HH/MM/<id>.
	Minutes
)

func (r Resolution) String() string {
	switch r {
	case Days:
		return "Days"
	case Hours:
		return "Hours"
	case Minutes:
		return "Minutes"
	default:
		return "Resolution(?)"
	}
}

// Dir returns the directory that should hold an item with the given
// timestamp under root, at the given resolution.
func Dir(root string, t time.Time, res Resolution) string {
	enc := tstamp.Encode(t)
	// enc is "YYYY-MM-DD HH:MM:SS.mmmmmm"; the fixed offsets below pull
	// out the date and time-of-day components without reparsing.
	date := enc[0:10]
	switch res {
	case Hours:
		return filepath.Join(root, date, enc[11:13])
	case Minutes:
		return filepath.Join(root, date, enc[11:13], enc[14:16])
	default:
		return filepath.Join(root, date)
	}
}

// Path returns the full file path for an item with the given id and
// timestamp under root, at the given resolution.
func Path(root string, t time.Time, res Resolution, id string) string {
	return filepath.Join(Dir(root, t, res), id)
}

// PruneEmptyAncestors removes dir and any now-empty parent directories,
// stopping at (and never removing) root itself. It is called after a
// file deletion to keep the time-bucketed directory tree from
// accumulating empty shells.
func PruneEmptyAncestors(root, dir string) error {
	root = filepath.Clean(root)
	cur := filepath.Clean(dir)
	for cur != root && len(cur) > len(root) {
		entries, err := os.ReadDir(cur)
		if os.IsNotExist(err) {
			cur = filepath.Dir(cur)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "reading directory %s", cur)
		}
		if len(entries) > 0 {
			return nil
		}
		if err := os.Remove(cur); err != nil {
			return errors.Wrapf(err, "removing empty directory %s", cur)
		}
		cur = filepath.Dir(cur)
	}
	return nil
}
