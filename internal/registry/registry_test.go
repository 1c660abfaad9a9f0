package registry

import (
	"errors"
	"testing"

	"github.com/SchizoDuckie/stairled-server/internal/timeline"
)

func newAnimation(name string, durationMs int64) NamedAnimation {
	c := timeline.NewContainer()
	fi, _ := timeline.NewFadeIn([]int{1}, 0, 100, durationMs)
	c.Add(0, fi)
	return NamedAnimation{Name: name, Timeline: c}
}

type sliceSource struct {
	entries []NamedAnimation
	err     error
}

func (s sliceSource) LoadAnimations() ([]NamedAnimation, error) { return s.entries, s.err }

func TestLoadFromReplacesAtomically(t *testing.T) {
	r := New()
	r.Upsert(newAnimation("stale", 10))

	src := sliceSource{entries: []NamedAnimation{newAnimation("fresh", 20)}}
	if _, err := r.LoadFrom(src); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if _, err := r.Get("stale"); err == nil {
		t.Fatalf("expected stale entry to be gone after load_from")
	}
	if _, err := r.Get("fresh"); err != nil {
		t.Fatalf("expected fresh entry to load: %v", err)
	}
}

func TestLoadFromReportsRejectedEntriesWithoutAborting(t *testing.T) {
	r := New()
	src := sliceSource{
		entries: []NamedAnimation{newAnimation("ok", 20)},
		err:     &LoadErrors{Errors: []RejectedEntry{{Name: "bad", Err: errors.New("boom")}}},
	}
	report, err := r.LoadFrom(src)
	if err != nil {
		t.Fatalf("LoadFrom should not abort on partial errors: %v", err)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Name != "bad" {
		t.Fatalf("expected bad entry reported as rejected, got %+v", report.Rejected)
	}
	if _, err := r.Get("ok"); err != nil {
		t.Fatalf("expected ok entry to load despite sibling rejection: %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	if err == nil {
		t.Fatalf("expected NotFound error")
	}
}

func TestUpsertThenDelete(t *testing.T) {
	r := New()
	r.Upsert(newAnimation("a", 5))
	if _, err := r.Get("a"); err != nil {
		t.Fatalf("expected a to be present: %v", err)
	}
	r.Delete("a")
	if _, err := r.Get("a"); err == nil {
		t.Fatalf("expected a to be gone after delete")
	}
}
