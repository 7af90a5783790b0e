// Package testutil provides fixtures shared by isto's package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jreunanen/isto"
)

// OpenStore opens a fresh Store rooted at two subdirectories of
// t.TempDir(), closing it automatically when the test ends.
func OpenStore(ctx context.Context, t *testing.T, cfg isto.Configuration) *isto.Store {
	t.Helper()
	dir := t.TempDir()
	if cfg.RotatingDirectory == "" {
		cfg.RotatingDirectory = dir + "/rotating"
	}
	if cfg.PermanentDirectory == "" {
		cfg.PermanentDirectory = dir + "/permanent"
	}
	s, err := isto.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("opening store: %s", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %s", err)
		}
	})
	return s
}

// Item builds a valid DataItem for use in tests, failing the test if
// the id or timestamp is malformed.
func Item(t *testing.T, id string, data []byte, when time.Time, permanent bool, tags map[string]string) isto.DataItem {
	t.Helper()
	item, err := isto.NewDataItem(id, data, when, permanent, tags)
	if err != nil {
		t.Fatalf("constructing item %s: %s", id, err)
	}
	return item
}

// Base is a fixed reference instant tests build offsets from, chosen
// with a non-round fractional second so rounding bugs in the
// microsecond codec surface immediately.
var Base = time.Date(2024, 3, 15, 12, 30, 45, 123456000, time.UTC)
