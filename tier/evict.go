package tier

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto/layout"
)

// Evict deletes the oldest rotating rows (and their content files) until
// a pending insert of sizeToInsert bytes fits the tier's byte budget and
// free-disk floor, or until there is nothing left to delete. It commits
// every DeletionFlushInterval deletions to bound rollback cost, and once
// more at the end if it deleted anything. It reports an error if the
// constraints still cannot be satisfied once every row has been tried.
func (s *Store) Evict(ctx context.Context, sizeToInsert int64) error {
	if s.cfg.Kind != Rotating {
		return nil
	}

	free, err := FreeDiskBytes(s.cfg.Root)
	if err != nil {
		return errors.Wrap(err, "measuring free disk space")
	}

	deletedAny := false
	for !s.Fits(sizeToInsert, free) {
		var (
			victim Row
			found  bool
		)
		err := s.OldestFirst(ctx, func(row Row) (bool, error) {
			victim, found = row, true
			return false, nil // one row is enough; stop iterating
		})
		if err != nil {
			return errors.Wrap(err, "finding eviction candidate")
		}
		if !found {
			return errors.New("cannot make room: no more rotating items to evict")
		}

		if err := os.Remove(victim.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing evicted file %s", victim.Path)
		}
		if err := layout.PruneEmptyAncestors(s.cfg.Root, filepath.Dir(victim.Path)); err != nil {
			return errors.Wrap(err, "pruning empty directories after eviction")
		}
		if _, _, err := s.DeleteByID(ctx, victim.ID); err != nil {
			return errors.Wrapf(err, "deleting evicted row %s", victim.ID)
		}
		free += victim.Size
		deletedAny = true

		if s.onRotatingDeleted != nil {
			s.onRotatingDeleted(victim.ID)
		}

		s.deletionsSinceFlush++
		if s.deletionsSinceFlush >= s.cfg.DeletionFlushInterval {
			if err := s.Flush(ctx); err != nil {
				return errors.Wrap(err, "flushing after batch of evictions")
			}
		}
	}

	if deletedAny {
		if err := s.Flush(ctx); err != nil {
			return errors.Wrap(err, "flushing after eviction")
		}
	}

	return nil
}
