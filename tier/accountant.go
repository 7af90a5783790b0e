package tier

import (
	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

// CurrentBytes returns the sum of size over rotating rows. It is
// meaningless for a permanent-tier Store.
func (s *Store) CurrentBytes() int64 { return s.currentBytes }

// AddBytes adjusts the rotating byte counter. Callers use this instead
// of recomputing the sum from the index on every write.
func (s *Store) AddBytes(delta int64) {
	if s.cfg.Kind == Rotating {
		s.currentBytes += delta
	}
}

// FreeDiskBytes reports free space on the filesystem backing the tier's
// root directory.
func FreeDiskBytes(root string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return 0, errors.Wrapf(err, "statfs %s", root)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// Fits reports whether inserting delta more rotating bytes keeps the
// tier within its configured byte budget and free-disk-space floor.
// freeBytes is the free space measured before the insert; it is a
// parameter (rather than measured internally) so eviction can pass its
// running, adjusted estimate without re-statfs-ing after every delete.
func (s *Store) Fits(delta, freeBytes int64) bool {
	if s.cfg.Kind != Rotating {
		return true
	}
	return s.currentBytes+delta <= s.cfg.MaxRotatingBytes &&
		freeBytes-delta >= s.cfg.MinFreeDiskBytes
}
