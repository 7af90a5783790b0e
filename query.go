package isto

import (
	"context"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jreunanen/isto/tier"
	"github.com/jreunanen/isto/tstamp"
)

// GetDataByID returns the item with the given id, checking the
// permanent tier first, since permanent lookups are expected to
// dominate steady-state traffic once items age out of the rotating
// tier. It returns the invalid sentinel, not an error, when no such id
// exists.
func (s *Store) GetDataByID(ctx context.Context, id string) (DataItem, error) {
	if cached, ok := s.idCache.Get(id); ok {
		return cached.(DataItem), nil
	}

	for _, permanent := range []bool{true, false} {
		ts := s.tierFor(permanent)
		row, ok, err := ts.GetByID(ctx, id)
		if err != nil {
			return Invalid(), errors.Wrapf(err, "looking up id %s in %s tier", id, ts.Kind())
		}
		if !ok {
			continue
		}
		item, err := s.loadItem(row, permanent)
		if err != nil {
			return Invalid(), err
		}
		s.idCache.Add(id, item)
		return item, nil
	}
	return Invalid(), nil
}

func (s *Store) loadItem(row tier.Row, permanent bool) (DataItem, error) {
	data, err := ioutil.ReadFile(row.Path)
	if err != nil {
		return Invalid(), errors.Wrapf(err, "reading content file %s", row.Path)
	}
	when, err := tstamp.Decode(row.Timestamp)
	if err != nil {
		return Invalid(), errors.Wrapf(err, "decoding timestamp for %s", row.ID)
	}
	return DataItem{
		ID:          row.ID,
		Data:        data,
		Timestamp:   when,
		IsPermanent: permanent,
		Tags:        row.Tags,
		valid:       true,
	}, nil
}

// tierMatch is one tier's answer to a single comparison query.
type tierMatch struct {
	ts        string
	permanent bool
	ok        bool
}

func closerTo(target string, a, b tierMatch) tierMatch {
	switch {
	case a.ok && b.ok:
		da := absDiff(a.ts, target)
		db := absDiff(b.ts, target)
		// Ties favor the rotating tier.
		if !a.permanent && da <= db {
			return a
		}
		if !b.permanent && db <= da {
			return b
		}
		if da <= db {
			return a
		}
		return b
	case a.ok:
		return a
	case b.ok:
		return b
	default:
		return tierMatch{}
	}
}

func absDiff(tsA, tsB string) time.Duration {
	a, errA := tstamp.Decode(tsA)
	b, errB := tstamp.Decode(tsB)
	if errA != nil || errB != nil {
		return 0
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}

// queryOp runs a single primitive comparison against both tiers and
// returns whichever hit lies closer to ts.
func (s *Store) queryOp(ctx context.Context, op tier.Op, ts string, tags map[string]string) (tierMatch, error) {
	rts, rok, err := s.rotating.NearestTimestamp(ctx, op, ts, tags)
	if err != nil {
		return tierMatch{}, errors.Wrap(err, "querying rotating tier")
	}
	pts, pok, err := s.permanent.NearestTimestamp(ctx, op, ts, tags)
	if err != nil {
		return tierMatch{}, errors.Wrap(err, "querying permanent tier")
	}
	return closerTo(ts, tierMatch{ts: rts, permanent: false, ok: rok}, tierMatch{ts: pts, permanent: true, ok: pok}), nil
}

// queryEQ finds an exact timestamp match, which NearestTimestamp alone
// cannot express (its <= comparison would happily return an earlier
// timestamp when there is no exact hit).
func (s *Store) queryEQ(ctx context.Context, ts string, tags map[string]string) (tierMatch, error) {
	m, err := s.queryOp(ctx, tier.OpLE, ts, tags)
	if err != nil || !m.ok || m.ts != ts {
		return tierMatch{}, err
	}
	return m, nil
}

// queryNearest resolves the "~" operator: the closer of the best
// at-or-before and best at-or-after matches, ties favoring the earlier
// (at-or-before) side.
func (s *Store) queryNearest(ctx context.Context, ts string, tags map[string]string) (tierMatch, error) {
	le, err := s.queryOp(ctx, tier.OpLE, ts, tags)
	if err != nil {
		return tierMatch{}, err
	}
	ge, err := s.queryOp(ctx, tier.OpGE, ts, tags)
	if err != nil {
		return tierMatch{}, err
	}
	switch {
	case le.ok && ge.ok:
		if absDiff(le.ts, ts) <= absDiff(ge.ts, ts) {
			return le, nil
		}
		return ge, nil
	case le.ok:
		return le, nil
	case ge.ok:
		return ge, nil
	default:
		return tierMatch{}, nil
	}
}

// GetDataByTimestamp resolves a timestamp comparison query across both
// tiers and returns the winning item, or the invalid sentinel if
// nothing matches.
func (s *Store) GetDataByTimestamp(ctx context.Context, when time.Time, op Op, tags map[string]string) (DataItem, error) {
	rounded, err := tstamp.Round(when)
	if err != nil {
		return Invalid(), errors.Wrap(err, "rounding query timestamp")
	}
	ts := tstamp.Encode(rounded)

	var match tierMatch
	switch op {
	case EQ:
		match, err = s.queryEQ(ctx, ts, tags)
	case Nearest:
		match, err = s.queryNearest(ctx, ts, tags)
	case LT:
		match, err = s.queryOp(ctx, tier.OpLT, ts, tags)
	case LE:
		match, err = s.queryOp(ctx, tier.OpLE, ts, tags)
	case GE:
		match, err = s.queryOp(ctx, tier.OpGE, ts, tags)
	case GT:
		match, err = s.queryOp(ctx, tier.OpGT, ts, tags)
	default:
		// Unknown operators yield the invalid sentinel rather than an
		// error.
		return Invalid(), nil
	}
	if err != nil {
		return Invalid(), err
	}
	if !match.ok {
		return Invalid(), nil
	}

	winner := s.tierFor(match.permanent)
	id, ok, err := winner.IDForTimestamp(ctx, match.ts, tags)
	if err != nil {
		return Invalid(), errors.Wrap(err, "resolving id for matched timestamp")
	}
	if !ok {
		return Invalid(), nil
	}
	return s.GetDataByID(ctx, id)
}

// GetDataItems returns items with timestamp in [start, end], matching
// tags, merged from both tiers and sorted per order (unless order is
// DontCare). maxItems caps the result length; maxItems == 0 returns no
// items, and a negative maxItems is unbounded.
func (s *Store) GetDataItems(ctx context.Context, start, end time.Time, tags map[string]string, maxItems int, order Order) ([]DataItem, error) {
	startRounded, err := tstamp.Round(start)
	if err != nil {
		return nil, errors.Wrap(err, "rounding range start")
	}
	endRounded, err := tstamp.Round(end)
	if err != nil {
		return nil, errors.Wrap(err, "rounding range end")
	}
	startTS, endTS := tstamp.Encode(startRounded), tstamp.Encode(endRounded)

	rotRows, err := s.rotating.Range(ctx, startTS, endTS, tags, maxItems, order)
	if err != nil {
		return nil, errors.Wrap(err, "ranging rotating tier")
	}
	permRows, err := s.permanent.Range(ctx, startTS, endTS, tags, maxItems, order)
	if err != nil {
		return nil, errors.Wrap(err, "ranging permanent tier")
	}

	merged := make([]locatedRow, 0, len(rotRows)+len(permRows))
	for _, r := range rotRows {
		merged = append(merged, locatedRow{r, false})
	}
	for _, r := range permRows {
		merged = append(merged, locatedRow{r, true})
	}

	switch order {
	case Asc:
		sortLocated(merged, true)
	case Desc:
		sortLocated(merged, false)
	}
	if maxItems > 0 && len(merged) > maxItems {
		merged = merged[:maxItems]
	}
	if len(merged) == 0 {
		return nil, nil
	}

	items := make([]DataItem, len(merged))
	first, err := s.loadItem(merged[0].row, merged[0].permanent)
	if err != nil {
		return nil, err
	}
	items[0] = first

	if len(merged) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i := 1; i < len(merged); i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				item, err := s.loadItem(merged[i].row, merged[i].permanent)
				if err != nil {
					return err
				}
				items[i] = item
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// locatedRow pairs an index row with which tier it came from, so the
// merged cross-tier result can still be loaded from the right file
// tree after sorting.
type locatedRow struct {
	row       tier.Row
	permanent bool
}

func sortLocated(rows []locatedRow, ascending bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			less := rows[j].row.Timestamp < rows[j-1].row.Timestamp
			if !ascending {
				less = rows[j].row.Timestamp > rows[j-1].row.Timestamp
			}
			if !less {
				break
			}
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}
