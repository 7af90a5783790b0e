package isto

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto/cache"
	"github.com/jreunanen/isto/metrics"
	"github.com/jreunanen/isto/tier"
)

// Store is an open handle on a two-tier isto database. Create one with
// Open and release it with Close.
type Store struct {
	cfg       Configuration
	rotating  *tier.Store
	permanent *tier.Store
	idCache   *cache.Cache

	onRotatingDeleted func(id string)
}

// Open opens (creating on first use) the rotating and permanent tiers
// named by cfg. It fails fatally if either tier's index is already held
// open exclusively by another Store, if a declared tag name contains
// whitespace, or if the rotating tier's byte counter cannot be
// initialized.
func Open(ctx context.Context, cfg Configuration) (*Store, error) {
	rotCfg := tier.Config{
		Root:                  cfg.RotatingDirectory,
		Kind:                  tier.Rotating,
		Tags:                  cfg.Tags,
		Resolution:            cfg.DirectoryStructureResolution,
		MaxRotatingBytes:      cfg.maxRotatingBytes(),
		MinFreeDiskBytes:      cfg.minFreeDiskBytes(),
		DeletionFlushInterval: cfg.deletionFlushInterval(),
	}
	rotating, err := tier.Open(ctx, rotCfg)
	if err != nil {
		return nil, errors.Wrap(err, "opening rotating tier")
	}

	permCfg := tier.Config{
		Root:       cfg.PermanentDirectory,
		Kind:       tier.Permanent,
		Tags:       cfg.Tags,
		Resolution: cfg.DirectoryStructureResolution,
	}
	permanent, err := tier.Open(ctx, permCfg)
	if err != nil {
		rotating.Close()
		return nil, errors.Wrap(err, "opening permanent tier")
	}

	log.Printf("isto: opened store (rotating=%s, permanent=%s)", cfg.RotatingDirectory, cfg.PermanentDirectory)

	s := &Store{
		cfg:       cfg,
		rotating:  rotating,
		permanent: permanent,
		idCache:   cache.New(256),
	}
	metrics.RotatingBytes.Set(float64(rotating.CurrentBytes()))
	s.rotating.SetRotatingDeletedCallback(s.handleRotatingDeleted)
	return s, nil
}

func (s *Store) handleRotatingDeleted(id string) {
	s.idCache.Remove(id)
	metrics.EvictionsTotal.Inc()
	metrics.RotatingBytes.Set(float64(s.rotating.CurrentBytes()))
	if s.onRotatingDeleted != nil {
		s.onRotatingDeleted(id)
	}
}

// Close flushes both tiers and releases their index handles.
func (s *Store) Close() error {
	rerr := s.rotating.Close()
	perr := s.permanent.Close()
	if rerr != nil {
		return errors.Wrap(rerr, "closing rotating tier")
	}
	return errors.Wrap(perr, "closing permanent tier")
}

// SetRotatingDeletedCallback installs fn to be invoked, once per row,
// whenever SaveData's eviction sweep deletes a rotating item.
func (s *Store) SetRotatingDeletedCallback(fn func(id string)) {
	s.onRotatingDeleted = fn
}

func (s *Store) tierFor(permanent bool) *tier.Store {
	if permanent {
		return s.permanent
	}
	return s.rotating
}
