package isto

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto/layout"
	"github.com/jreunanen/isto/tier"
)

// MakePermanent moves the item named by id from the rotating tier to
// the permanent tier, if it currently lives there. It returns false if
// id does not exist in the rotating tier.
//
// The source row and file are removed before the destination write, so
// a failure partway through can lose the item rather than leave it
// duplicated: never duplicate an id across tiers, even at the cost of
// occasionally losing one to a crash mid-migration.
func (s *Store) MakePermanent(ctx context.Context, id string) (bool, error) {
	return s.migrate(ctx, id, s.rotating, s.permanent, true)
}

// MakeRotating moves the item named by id from the permanent tier to
// the rotating tier, if it currently lives there. It returns false if
// id does not exist in the permanent tier. See MakePermanent for the
// ordering trade-off this shares.
func (s *Store) MakeRotating(ctx context.Context, id string) (bool, error) {
	return s.migrate(ctx, id, s.permanent, s.rotating, false)
}

func (s *Store) migrate(ctx context.Context, id string, from, to *tier.Store, toPermanent bool) (bool, error) {
	row, ok, err := from.GetByID(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "looking up %s in %s tier", id, from.Kind())
	}
	if !ok {
		return false, nil
	}
	item, err := s.loadItem(row, from.Kind() == tier.Permanent)
	if err != nil {
		return false, err
	}

	if _, _, err := from.DeleteByID(ctx, id); err != nil {
		return false, errors.Wrapf(err, "removing %s from %s tier", id, from.Kind())
	}
	if err := os.Remove(row.Path); err != nil && !os.IsNotExist(err) {
		return false, errors.Wrapf(err, "removing content file %s", row.Path)
	}
	if err := layout.PruneEmptyAncestors(from.Root(), filepath.Dir(row.Path)); err != nil {
		return false, errors.Wrap(err, "pruning empty directories after migration")
	}
	s.idCache.Remove(id)
	if err := from.Flush(ctx); err != nil {
		return false, errors.Wrap(err, "flushing source tier after migration")
	}

	item.IsPermanent = toPermanent
	if err := s.SaveData(ctx, []DataItem{item}, false); err != nil {
		// The source copy is already gone: per the ordering above, this
		// item is now lost rather than duplicated.
		return false, errors.Wrapf(err, "saving %s into %s tier", id, to.Kind())
	}
	return true, nil
}
