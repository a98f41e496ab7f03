package settings

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	cur     *Settings
	gets    int
	upserts int
	fail    error
}

func (f *fakeStore) Get(ctx context.Context) (*Settings, error) {
	f.gets++
	if f.fail != nil {
		return nil, f.fail
	}
	if f.cur == nil {
		return nil, nil
	}
	cp := *f.cur
	return &cp, nil
}

func (f *fakeStore) Upsert(ctx context.Context, s Settings) error {
	f.upserts++
	if f.fail != nil {
		return f.fail
	}
	f.cur = &s
	return nil
}

func TestCurrent_FetchIfEmpty(t *testing.T) {
	stored := Default()
	stored.Tone = "Formal & Professional"
	fs := &fakeStore{cur: &stored}
	c := NewCache(fs)

	got, found, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current error: %v", err)
	}
	if !found {
		t.Fatal("expected settings to be found")
	}
	if got.Tone != "Formal & Professional" {
		t.Errorf("tone = %q", got.Tone)
	}

	// Second read is served from the cache.
	if _, _, err := c.Current(context.Background()); err != nil {
		t.Fatalf("Current error: %v", err)
	}
	if fs.gets != 1 {
		t.Errorf("store gets = %d, want 1", fs.gets)
	}
}

func TestCurrent_AbsentDocument(t *testing.T) {
	c := NewCache(&fakeStore{})

	_, found, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for an empty store")
	}
}

func TestCurrent_NoStore(t *testing.T) {
	c := NewCache(nil)
	_, _, err := c.Current(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestUpdate_RefreshesCacheSynchronously(t *testing.T) {
	fs := &fakeStore{}
	c := NewCache(fs)

	s := Default()
	s.TextSize = "Long"
	updated, err := c.Update(context.Background(), s)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.TextSize != "Long" {
		t.Errorf("textSize = %q, want Long", updated.TextSize)
	}

	// Reads after the update must not hit the store again.
	before := fs.gets
	got, found, err := c.Current(context.Background())
	if err != nil || !found {
		t.Fatalf("Current after update: found=%v err=%v", found, err)
	}
	if got.TextSize != "Long" {
		t.Errorf("cached textSize = %q, want Long", got.TextSize)
	}
	if fs.gets != before {
		t.Errorf("Current after Update hit the store (%d gets)", fs.gets-before)
	}
}

func TestUpdate_StoreFailure(t *testing.T) {
	fs := &fakeStore{fail: errors.New("write not acknowledged")}
	c := NewCache(fs)

	if _, err := c.Update(context.Background(), Default()); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestInvalidate(t *testing.T) {
	stored := Default()
	fs := &fakeStore{cur: &stored}
	c := NewCache(fs)

	if _, _, err := c.Current(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if _, _, err := c.Current(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fs.gets != 2 {
		t.Errorf("gets = %d, want 2 after invalidation", fs.gets)
	}
}

func TestIntervalText(t *testing.T) {
	cases := []struct {
		iv   Interval
		want string
	}{
		{Interval{Min: 150, Max: 400}, "150 to 400 characters"},
		{Interval{Min: 150, Max: 0}, "150 to ∞ characters"},
		{Interval{Min: 0, Max: -1}, "0 to ∞ characters"},
	}
	for _, tc := range cases {
		if got := tc.iv.Text(); got != tc.want {
			t.Errorf("Text(%+v) = %q, want %q", tc.iv, got, tc.want)
		}
	}
}
