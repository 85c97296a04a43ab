package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/document"
	"github.com/kailas-cloud/hintd/internal/domain"
	"github.com/kailas-cloud/hintd/internal/domain/hint"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	"github.com/kailas-cloud/hintd/internal/report"
)

const testPage = `<html><body>
<a href="/home">Home</a>
<a href="/about">About</a>
<iframe src="/nested.html"></iframe>
</body></html>`

const nestedPage = `<a href="/contact">Contact</a><a href="/blog">Blog</a><a href="/archive">Archive</a>`

func newTestService(t *testing.T, cfg Config, pubs ...Publisher) *Service {
	t.Helper()
	if cfg.Alphabet == "" {
		cfg.Alphabet = "ab"
	}
	svc := New(cfg, zap.NewNop(), pubs...)
	t.Cleanup(svc.Close)
	return svc
}

func createTestSession(t *testing.T, svc *Service) string {
	t.Helper()
	snap, err := svc.Create(context.Background(), CreateRequest{
		HTML:      testPage,
		URL:       "https://example.test/",
		Resources: map[string]string{"https://example.test/nested.html": nestedPage},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return snap.ID
}

func startedSession(t *testing.T, svc *Service, strategy label.Strategy) string {
	t.Helper()
	id := createTestSession(t, svc)
	if _, err := svc.Start(context.Background(), id, StartRequest{Strategy: string(strategy)}); err != nil {
		t.Fatalf("start: %v", err)
	}
	return id
}

func hintTexts(hs []Hint) []string {
	var out []string
	for _, h := range hs {
		out = append(out, h.Text)
	}
	return out
}

func hintLabels(hs []Hint) []string {
	var out []string
	for _, h := range hs {
		out = append(out, h.Label)
	}
	return out
}

func activeText(snap Snapshot) string {
	if snap.Active == nil {
		return ""
	}
	return snap.Active.Text
}

func TestCreate_NotStarted(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	snap, err := svc.Create(ctx, CreateRequest{HTML: testPage})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.ID == "" {
		t.Fatal("expected a session id")
	}
	if snap.Started || len(snap.Hints) != 0 {
		t.Errorf("fresh session must not show hints, got %+v", snap)
	}
}

func TestStart_SequentialNumbersWholeTree(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Sequential)

	snap, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !snap.Complete || snap.Total != 5 || snap.Epoch != 1 {
		t.Errorf("unexpected totals: complete=%v total=%d epoch=%d", snap.Complete, snap.Total, snap.Epoch)
	}
	if diff := cmp.Diff([]string{"Home", "About", "Contact", "Blog", "Archive"}, hintTexts(snap.Hints)); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}
	for i, h := range snap.Hints {
		if h.Index != i+1 {
			t.Errorf("hint %s: index %d, want %d", h.Text, h.Index, i+1)
		}
	}
	if snap.Hints[2].Frame != "top/0" || snap.Hints[2].URL != "https://example.test/contact" {
		t.Errorf("unexpected nested hint %+v", snap.Hints[2])
	}
	if got := activeText(snap); got != "Home" {
		t.Errorf("expected first hint active, got %q", got)
	}

	created := snap.Reports[0]
	if created.Type != report.TypeCreated || created.Total != 5 || created.Session != id {
		t.Errorf("unexpected first report %+v", created)
	}
}

func TestFilter_ScenarioContact(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Sequential)
	ctx := context.Background()

	snap, err := svc.Filter(ctx, id, "co")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	vis := snap.Visible()
	if diff := cmp.Diff([]string{"Contact"}, hintTexts(vis)); diff != "" {
		t.Errorf("visible mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1"}, hintLabels(vis)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if snap.Filter != "co" {
		t.Errorf("expected filter to be recorded, got %q", snap.Filter)
	}

	snap, err = svc.Filter(ctx, id, "")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, hintLabels(snap.Visible())); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestNextPrev_Cycle(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Prefix)
	ctx := context.Background()

	var seen []string
	for i := 0; i < 6; i++ {
		snap, err := svc.Next(ctx, id)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		seen = append(seen, activeText(snap))
	}
	if diff := cmp.Diff([]string{"Home", "About", "Contact", "Blog", "Archive", "Home"}, seen); diff != "" {
		t.Errorf("forward cycle mismatch (-want +got):\n%s", diff)
	}

	snap, err := svc.Prev(ctx, id)
	if err != nil {
		t.Fatalf("prev: %v", err)
	}
	if got := activeText(snap); got != "Archive" {
		t.Errorf("expected prev to wrap to Archive, got %q", got)
	}
}

func TestPrefix_CodesAndSelect(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Prefix)
	ctx := context.Background()

	snap, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want, err := label.PrefixCodes(5, "ab")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, hintLabels(snap.Hints)); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	if snap.Active != nil {
		t.Errorf("prefix start must not activate, got %q", snap.Active.Text)
	}

	snap, err = svc.Select(ctx, id, want[3])
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := activeText(snap); got != "Blog" {
		t.Errorf("expected Blog, got %q", got)
	}

	if _, err := svc.Select(ctx, id, ""); !errors.Is(err, domain.ErrInvalidLabel) {
		t.Errorf("expected ErrInvalidLabel, got %v", err)
	}
}

func TestSelectAndFollow(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Sequential)
	ctx := context.Background()

	snap, err := svc.Select(ctx, id, "3")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := activeText(snap); got != "Contact" {
		t.Fatalf("expected Contact, got %q", got)
	}

	snap, err = svc.Follow(ctx, id)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	want := []document.Event{
		{Type: "mousedown", Frame: "top/0", Target: "Contact", URL: "https://example.test/contact"},
		{Type: "click", Frame: "top/0", Target: "Contact", URL: "https://example.test/contact"},
		{Type: "mouseup", Frame: "top/0", Target: "Contact", URL: "https://example.test/contact"},
	}
	if diff := cmp.Diff(want, snap.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	last := snap.Reports[len(snap.Reports)-1]
	if last.Type != report.TypeFollowed || last.Hint.Index != 3 {
		t.Errorf("unexpected last report %+v", last)
	}

	for _, bad := range []string{"x", "0", "-1"} {
		if _, err := svc.Select(ctx, id, bad); !errors.Is(err, domain.ErrInvalidLabel) {
			t.Errorf("select %q: expected ErrInvalidLabel, got %v", bad, err)
		}
	}
}

func TestStart_Validation(t *testing.T) {
	svc := newTestService(t, Config{})
	id := createTestSession(t, svc)
	ctx := context.Background()

	if _, err := svc.Start(ctx, id, StartRequest{Strategy: "bogus"}); !errors.Is(err, domain.ErrInvalidStrategy) {
		t.Errorf("expected ErrInvalidStrategy, got %v", err)
	}
	if _, err := svc.Start(ctx, id, StartRequest{Query: "a["}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}

	snap, err := svc.Start(ctx, id, StartRequest{Query: "a[href='/blog']", Strategy: "filter"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Strategy != label.Sequential || snap.Total != 1 {
		t.Errorf("unexpected session %+v", snap)
	}
}

func TestCommands_RequireStart(t *testing.T) {
	svc := newTestService(t, Config{})
	id := createTestSession(t, svc)
	ctx := context.Background()

	if _, err := svc.Next(ctx, id); !errors.Is(err, domain.ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if _, err := svc.Filter(ctx, id, "a"); !errors.Is(err, domain.ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if _, err := svc.Clear(ctx, id); err != nil {
		t.Errorf("clear must be allowed outside hint mode, got %v", err)
	}
}

func TestClearAndAbort(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Sequential)
	ctx := context.Background()

	snap, err := svc.Clear(ctx, id)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if snap.Started || len(snap.Hints) != 0 {
		t.Errorf("expected hint mode off, got %+v", snap)
	}

	if _, err := svc.Start(ctx, id, StartRequest{}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	snap, err = svc.Abort(ctx, id, "top/0")
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if snap.Started {
		t.Error("abort from a nested frame must clear the whole tree")
	}

	if _, err := svc.Abort(ctx, id, "top/9"); !errors.Is(err, domain.ErrFrameNotFound) {
		t.Errorf("expected ErrFrameNotFound, got %v", err)
	}
}

func TestRemoveFrame(t *testing.T) {
	svc := newTestService(t, Config{})
	id := startedSession(t, svc, label.Sequential)
	ctx := context.Background()

	snap, err := svc.RemoveFrame(ctx, id, "top/0")
	if err != nil {
		t.Fatalf("remove frame: %v", err)
	}
	if diff := cmp.Diff([]string{"Home", "About"}, hintTexts(snap.Hints)); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}

	snap, err = svc.Start(ctx, id, StartRequest{})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !snap.Complete || snap.Total != 2 || snap.Epoch != 2 {
		t.Errorf("restart should skip the removed frame: complete=%v total=%d epoch=%d", snap.Complete, snap.Total, snap.Epoch)
	}

	var seen []string
	for i := 0; i < 2; i++ {
		snap, err = svc.Next(ctx, id)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		seen = append(seen, activeText(snap))
	}
	if diff := cmp.Diff([]string{"About", "Home"}, seen); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.RemoveFrame(ctx, id, "top/0"); !errors.Is(err, domain.ErrFrameNotFound) {
		t.Errorf("expected ErrFrameNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService(t, Config{})
	id := createTestSession(t, svc)
	ctx := context.Background()

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreate_SessionLimit(t *testing.T) {
	svc := newTestService(t, Config{MaxSessions: 1})
	createTestSession(t, svc)

	_, err := svc.Create(context.Background(), CreateRequest{HTML: testPage})
	if !errors.Is(err, domain.ErrTooManySessions) {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}
}

func TestCreate_MaxFrameDepth(t *testing.T) {
	src := `<a href="#">Top</a><iframe srcdoc="<a href='#'>One</a><iframe srcdoc='<a href=#>Two</a>'></iframe>"></iframe>`

	for _, tc := range []struct {
		depth int
		want  []string
	}{
		{0, []string{"Top", "One", "Two"}},
		{1, []string{"Top", "One"}},
	} {
		svc := newTestService(t, Config{MaxFrameDepth: tc.depth})
		snap, err := svc.Create(context.Background(), CreateRequest{HTML: src})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		snap, err = svc.Start(context.Background(), snap.ID, StartRequest{})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if diff := cmp.Diff(tc.want, hintTexts(snap.Hints)); diff != "" {
			t.Errorf("depth %d: hints mismatch (-want +got):\n%s", tc.depth, diff)
		}
	}
}

func TestPublishers_ReceiveReports(t *testing.T) {
	rec := report.NewRecorder()
	svc := newTestService(t, Config{}, rec)
	id := startedSession(t, svc, label.Sequential)

	if _, err := svc.Next(context.Background(), id); err != nil {
		t.Fatalf("next: %v", err)
	}
	ev, ok := rec.Last(report.TypeSelected)
	if !ok {
		t.Fatal("expected a selected report")
	}
	if ev.Session != id || ev.Hint.Text != "About" || ev.Context != hint.ContextID("top") {
		t.Errorf("unexpected report %+v", ev)
	}
}

func TestUnknownSession(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	if _, err := svc.Next(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.RemoveFrame(ctx, "nope", "top/0"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
