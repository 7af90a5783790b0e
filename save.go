package isto

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jreunanen/isto/metrics"
	"github.com/jreunanen/isto/tier"
	"github.com/jreunanen/isto/tstamp"
)

// DuplicateError is returned by SaveData when upsert is false and one or
// more items in the batch already exist. Index rows written for the
// other, non-colliding items in the same batch are retained.
type DuplicateError struct {
	Paths []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("already exists, use upsert to overwrite: %s", strings.Join(e.Paths, ", "))
}

type plannedWrite struct {
	item          DataItem
	tierStore     *tier.Store
	dir           string
	path          string
	dirPreexisted bool
	existingSize  int64
	exists        bool
}

// SaveData persists one or more items. It is atomic per item, not
// atomic for the whole batch: if upsert is false and some ids in the
// batch collide with existing entries, the non-colliding items are
// still durably saved and only the collisions are reported, via a
// *DuplicateError.
func (s *Store) SaveData(ctx context.Context, items []DataItem, upsert bool) error {
	if len(items) == 0 {
		return nil
	}

	var pendingRotatingBytes int64
	for _, item := range items {
		if !item.IsPermanent {
			pendingRotatingBytes += int64(len(item.Data))
		}
	}
	if pendingRotatingBytes > 0 {
		if err := s.rotating.Evict(ctx, pendingRotatingBytes); err != nil {
			return errors.Wrap(err, "making room in rotating tier")
		}
	}

	plans := make([]*plannedWrite, len(items))
	dirsSeen := make(map[string]bool)
	newlyCreated := make(map[string]bool)
	for i, item := range items {
		ts := s.tierFor(item.IsPermanent)
		dir := ts.Dir(item.Timestamp)
		path := ts.Path(item.Timestamp, item.ID)
		plans[i] = &plannedWrite{item: item, tierStore: ts, dir: dir, path: path}

		if dirsSeen[dir] {
			continue
		}
		dirsSeen[dir] = true

		_, err := os.Stat(dir)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "creating directory %s", dir)
			}
			newlyCreated[dir] = true
		} else if err != nil {
			return errors.Wrapf(err, "checking directory %s", dir)
		}
	}
	for _, p := range plans {
		p.dirPreexisted = !newlyCreated[p.dir]
	}

	// Concurrent existence probe: items in freshly created directories
	// cannot already have a file there, so only pre-existing directories
	// need a stat.
	probeGroup, probeCtx := errgroup.WithContext(ctx)
	for _, p := range plans {
		if !p.dirPreexisted {
			continue
		}
		p := p
		probeGroup.Go(func() error {
			if err := probeCtx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(p.path)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "checking for existing file %s", p.path)
			}
			p.exists = true
			p.existingSize = info.Size()
			return nil
		})
	}
	if err := probeGroup.Wait(); err != nil {
		return err
	}

	var duplicatePaths []string
	var toWrite []*plannedWrite
	for _, p := range plans {
		if p.exists && !upsert {
			duplicatePaths = append(duplicatePaths, p.path)
			continue
		}
		if p.exists && upsert {
			p.tierStore.AddBytes(-p.existingSize)
		}
		toWrite = append(toWrite, p)
	}

	writeGroup, _ := errgroup.WithContext(ctx)
	for _, p := range toWrite {
		p := p
		writeGroup.Go(func() error {
			if err := ioutil.WriteFile(p.path, p.item.Data, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", p.path)
			}
			return nil
		})
	}

	dirty := map[*tier.Store]bool{}
	for _, p := range toWrite {
		row := tier.Row{
			ID:        p.item.ID,
			Timestamp: tstamp.Encode(p.item.Timestamp),
			Path:      p.path,
			Size:      int64(len(p.item.Data)),
			Tags:      s.cfg.filterTags(p.item.Tags),
		}
		if err := p.tierStore.Insert(ctx, row); err != nil {
			return errors.Wrapf(err, "inserting index row for %s", p.item.ID)
		}
		p.tierStore.AddBytes(row.Size)
		dirty[p.tierStore] = true
		s.idCache.Remove(p.item.ID)
		metrics.SavesTotal.WithLabelValues(tierLabel(p.item.IsPermanent)).Inc()
	}

	for ts := range dirty {
		if err := ts.Flush(ctx); err != nil {
			return errors.Wrap(err, "flushing after save")
		}
	}

	metrics.RotatingBytes.Set(float64(s.rotating.CurrentBytes()))

	if err := writeGroup.Wait(); err != nil {
		return err
	}

	if len(duplicatePaths) > 0 {
		return &DuplicateError{Paths: duplicatePaths}
	}
	return nil
}

func tierLabel(permanent bool) string {
	if permanent {
		return "permanent"
	}
	return "rotating"
}
