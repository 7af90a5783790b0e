package isto_test

import (
	"context"
	"testing"
	"time"

	"github.com/jreunanen/isto"
	"github.com/jreunanen/isto/testutil"
	"github.com/jreunanen/isto/tier"
)

func TestRoundTripByID(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{})

	when := testutil.Base
	item := testutil.Item(t, "a.bin", []byte("hello"), when, false, nil)
	if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDataByID(ctx, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsValid() {
		t.Fatal("expected item to be found")
	}
	if got.ID != item.ID || string(got.Data) != string(item.Data) || got.IsPermanent != item.IsPermanent {
		t.Errorf("got %+v, want %+v", got, item)
	}
	if d := got.Timestamp.Sub(item.Timestamp); d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("timestamp drifted by %s", d)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := isto.Configuration{
		RotatingDirectory: t.TempDir(),
		PermanentDirectory: t.TempDir(),
	}

	s, err := isto.Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	item := testutil.Item(t, "a.bin", []byte("hello"), testutil.Base, true, nil)
	if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := isto.Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.GetDataByID(ctx, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsValid() || !got.IsPermanent {
		t.Errorf("item did not survive reopen in its tier: %+v", got)
	}
}

func TestDuplicateRejectionWithoutUpsert(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{})

	item := testutil.Item(t, "a.bin", []byte("first"), testutil.Base, false, nil)
	if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
		t.Fatal(err)
	}

	dup := testutil.Item(t, "a.bin", []byte("second"), testutil.Base, false, nil)
	err := s.SaveData(ctx, []isto.DataItem{dup}, false)
	if err == nil {
		t.Fatal("expected duplicate save without upsert to fail")
	}
	if _, ok := err.(*isto.DuplicateError); !ok {
		t.Errorf("expected *isto.DuplicateError, got %T: %s", err, err)
	}

	got, err := s.GetDataByID(ctx, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "first" {
		t.Errorf("first item should still be retrievable, got %q", got.Data)
	}
}

func TestUpsertReplacement(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{})

	first := testutil.Item(t, "a.bin", []byte("first"), testutil.Base, false, nil)
	if err := s.SaveData(ctx, []isto.DataItem{first}, false); err != nil {
		t.Fatal(err)
	}
	second := testutil.Item(t, "a.bin", []byte("second-value"), testutil.Base, false, nil)
	if err := s.SaveData(ctx, []isto.DataItem{second}, true); err != nil {
		t.Fatal(err)
	}

	items, err := s.GetDataItems(ctx, time.Time{}, testutil.Base.Add(time.Hour), nil, 100, isto.Asc)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one row after upsert, got %d", len(items))
	}
	if string(items[0].Data) != "second-value" {
		t.Errorf("expected upsert to replace bytes, got %q", items[0].Data)
	}
}

func TestEvictionOrderingOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{
		MaxRotatingDataToKeepInGiB: float64(25) / (1024 * 1024 * 1024),
	})

	for i, id := range []string{"a.bin", "b.bin", "c.bin"} {
		when := testutil.Base.Add(time.Duration(i) * time.Hour)
		item := testutil.Item(t, id, make([]byte, 10), when, false, nil)
		if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
			t.Fatal(err)
		}
	}

	if got, _ := s.GetDataByID(ctx, "a.bin"); got.IsValid() {
		t.Error("oldest item a.bin should have been evicted")
	}
	if got, err := s.GetDataByID(ctx, "c.bin"); err != nil || !got.IsValid() {
		t.Error("newest item c.bin should remain")
	}
}

func TestPermanentImmuneToEviction(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{
		MaxRotatingDataToKeepInGiB: float64(10) / (1024 * 1024 * 1024),
	})

	old := testutil.Item(t, "old.bin", make([]byte, 10), testutil.Base, true, nil)
	if err := s.SaveData(ctx, []isto.DataItem{old}, false); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"a.bin", "b.bin", "c.bin"} {
		when := testutil.Base.Add(time.Duration(i+1) * time.Hour)
		item := testutil.Item(t, id, make([]byte, 10), when, false, nil)
		if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetDataByID(ctx, "old.bin")
	if err != nil || !got.IsValid() {
		t.Error("permanent item should never be evicted")
	}
}

func TestEvictionCallbackFires(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{
		MaxRotatingDataToKeepInGiB: float64(10) / (1024 * 1024 * 1024),
	})

	var evicted []string
	s.SetRotatingDeletedCallback(func(id string) { evicted = append(evicted, id) })

	for i, id := range []string{"a.bin", "b.bin"} {
		when := testutil.Base.Add(time.Duration(i) * time.Hour)
		item := testutil.Item(t, id, make([]byte, 10), when, false, nil)
		if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
			t.Fatal(err)
		}
	}

	if len(evicted) == 0 {
		t.Fatal("expected the eviction callback to fire at least once")
	}
}

func TestNearestSearchTieBreak(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{})
	anchor := testutil.Base

	deltas := []time.Duration{-20, -15, -12, -10, -5}
	for i, d := range deltas {
		when := anchor.Add(d * time.Microsecond)
		id := string(rune('1'+i)) + ".bin"
		item := testutil.Item(t, id, []byte("x"), when, false, nil)
		if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		offset time.Duration
		want   []string
	}{
		{-11 * time.Microsecond, []string{"3.bin", "4.bin"}},
		{-7 * time.Microsecond, []string{"5.bin"}},
		{-30 * time.Microsecond, []string{"1.bin"}},
		{0, []string{"5.bin"}},
	}
	for _, c := range cases {
		got, err := s.GetDataByTimestamp(ctx, anchor.Add(c.offset), isto.Nearest, nil)
		if err != nil {
			t.Fatalf("offset %s: %s", c.offset, err)
		}
		if !got.IsValid() {
			t.Fatalf("offset %s: no match", c.offset)
		}
		found := false
		for _, w := range c.want {
			if got.ID == w {
				found = true
			}
		}
		if !found {
			t.Errorf("offset %s: got %s, want one of %v", c.offset, got.ID, c.want)
		}
	}
}

func TestCrossTierNearest(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{})
	anchor := testutil.Base

	deltas := []time.Duration{-20, -15, -12, -10, -5}
	for i, d := range deltas {
		when := anchor.Add(d * time.Microsecond)
		id := string(rune('1'+i)) + ".bin"
		item := testutil.Item(t, id, []byte("x"), when, false, nil)
		if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
			t.Fatal(err)
		}
	}

	if ok, err := s.MakePermanent(ctx, "1.bin"); err != nil || !ok {
		t.Fatalf("promoting 1.bin: ok=%v err=%s", ok, err)
	}
	if ok, err := s.MakePermanent(ctx, "4.bin"); err != nil || !ok {
		t.Fatalf("promoting 4.bin: ok=%v err=%s", ok, err)
	}

	item3, err := s.GetDataByID(ctx, "3.bin")
	if err != nil || !item3.IsValid() {
		t.Fatalf("looking up 3.bin: %v %s", item3, err)
	}

	ge, err := s.GetDataByTimestamp(ctx, item3.Timestamp, isto.GE, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ge.ID != "3.bin" {
		t.Errorf(">= item3.timestamp: got %s, want 3.bin", ge.ID)
	}

	gt, err := s.GetDataByTimestamp(ctx, item3.Timestamp, isto.GT, nil)
	if err != nil {
		t.Fatal(err)
	}
	if gt.ID != "4.bin" {
		t.Errorf("> item3.timestamp: got %s, want 4.bin", gt.ID)
	}
}

func TestTagFilter(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{Tags: []string{"test", "test2"}})
	anchor := testutil.Base

	groupA := map[string]string{"test": "a", "test2": "1"}
	groupB := map[string]string{"test": "b", "test2": "2"}

	itemA := testutil.Item(t, "a.bin", []byte("a"), anchor.Add(-10*time.Microsecond), false, groupA)
	itemB := testutil.Item(t, "b.bin", []byte("b"), anchor.Add(-1*time.Microsecond), false, groupB)
	if err := s.SaveData(ctx, []isto.DataItem{itemA, itemB}, false); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDataByTimestamp(ctx, anchor, isto.Nearest, groupA)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "a.bin" {
		t.Errorf("tag-filtered nearest: got %s, want a.bin (b.bin is closer but wrong group)", got.ID)
	}
}

func TestRangeQuery(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(ctx, t, isto.Configuration{})
	anchor := testutil.Base

	for i := 1; i <= 10; i++ {
		when := anchor.Add(time.Duration(-i) * time.Microsecond)
		id := string(rune('a'+i-1)) + ".bin"
		item := testutil.Item(t, id, []byte("x"), when, false, nil)
		if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
			t.Fatal(err)
		}
	}

	items, err := s.GetDataItems(ctx, anchor.Add(-7*time.Microsecond), anchor.Add(-3*time.Microsecond), nil, 100, isto.Asc)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 {
		t.Errorf("expected 5 items in range, got %d", len(items))
	}
}

func TestSharedRootRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := testutil.OpenStore(ctx, t, isto.Configuration{
		RotatingDirectory:  root,
		PermanentDirectory: root,
	})

	item := testutil.Item(t, "a.bin", []byte("x"), testutil.Base, false, nil)
	if err := s.SaveData(ctx, []isto.DataItem{item}, false); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.MakePermanent(ctx, "a.bin"); err != nil || !ok {
		t.Fatalf("makePermanent: ok=%v err=%s", ok, err)
	}
	if ok, err := s.MakeRotating(ctx, "a.bin"); err != nil || !ok {
		t.Fatalf("makeRotating: ok=%v err=%s", ok, err)
	}

	got, err := s.GetDataByID(ctx, "a.bin")
	if err != nil || !got.IsValid() {
		t.Fatalf("item should survive shared-root round trip: %v %s", got, err)
	}
}

func TestFreeSpaceFloorBlocksRotatingButNotPermanent(t *testing.T) {
	ctx := context.Background()
	rotDir := t.TempDir()

	freeBytes, err := tier.FreeDiskBytes(rotDir)
	if err != nil {
		t.Fatal(err)
	}
	freeGiB := float64(freeBytes) / (1024 * 1024 * 1024)
	cfg := isto.Configuration{
		RotatingDirectory:     rotDir,
		PermanentDirectory:    t.TempDir(),
		MinFreeDiskSpaceInGiB: freeGiB,
	}
	s, err := isto.Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rot := testutil.Item(t, "rot.bin", make([]byte, 1024), testutil.Base, false, nil)
	if err := s.SaveData(ctx, []isto.DataItem{rot}, false); err == nil {
		t.Error("expected rotating save to fail with the free-space floor set to current free space")
	}

	perm := testutil.Item(t, "perm.bin", make([]byte, 1024), testutil.Base, true, nil)
	if err := s.SaveData(ctx, []isto.DataItem{perm}, false); err != nil {
		t.Errorf("permanent save should ignore the free-space floor, got %s", err)
	}
}
