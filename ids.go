package isto

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto/tstamp"
)

// IDsSortedByAscendingTimestamp returns the ids of rotating-tier items
// with timestamp in the half-open interval [begin, end), in ascending
// timestamp order. Either bound may be the zero time.Time to leave it
// unconstrained. Permanent-tier items are never returned: this method
// exists for callers walking the rotating tier's eviction order.
func (s *Store) IDsSortedByAscendingTimestamp(ctx context.Context, begin, end time.Time) ([]string, error) {
	var beginTS, endTS string
	if !begin.IsZero() {
		rounded, err := tstamp.Round(begin)
		if err != nil {
			return nil, errors.Wrap(err, "rounding begin timestamp")
		}
		beginTS = tstamp.Encode(rounded)
	}
	if !end.IsZero() {
		rounded, err := tstamp.Round(end)
		if err != nil {
			return nil, errors.Wrap(err, "rounding end timestamp")
		}
		endTS = tstamp.Encode(rounded)
	}
	ids, err := s.rotating.IDsSortedAscending(ctx, beginTS, endTS)
	return ids, errors.Wrap(err, "listing rotating ids by ascending timestamp")
}
