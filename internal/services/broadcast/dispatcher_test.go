package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ivankudzin/anonrelay/internal/domain/enums"
)

func TestBroadcastCountsSuccessesAndFailuresIndependently(t *testing.T) {
	gw := newFakeGateway()
	gw.failFor[20] = errors.New("blocked by user")
	d := NewDispatcher(gw, 0, nil, nil)

	summary, err := d.Broadcast(context.Background(), Content{Text: "hello"}, []int64{10, 20, 30})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if summary.Sent != 2 || summary.Failed != 1 {
		t.Fatalf("expected 2 sent / 1 failed, got %+v", summary)
	}
	if got := gw.textsFor(30); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("recipient after the failing one must still be served, got %v", got)
	}
}

func TestBroadcastRoutesMediaByKind(t *testing.T) {
	gw := newFakeGateway()
	d := NewDispatcher(gw, 0, nil, nil)
	ctx := context.Background()

	if _, err := d.Broadcast(ctx, Content{Text: "cap", MediaKind: enums.MediaKindPhoto, FileID: "f1"}, []int64{10}); err != nil {
		t.Fatalf("photo broadcast: %v", err)
	}
	if _, err := d.Broadcast(ctx, Content{Text: "cap", MediaKind: enums.MediaKindVideo, FileID: "f2"}, []int64{10}); err != nil {
		t.Fatalf("video broadcast: %v", err)
	}
	if _, err := d.Broadcast(ctx, Content{Text: "cap", MediaKind: enums.MediaKindAnimation, FileID: "f3"}, []int64{10}); err != nil {
		t.Fatalf("animation broadcast: %v", err)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.photos != 1 || gw.videos != 1 || gw.animations != 1 {
		t.Fatalf("media routing mismatch: photos=%d videos=%d animations=%d",
			gw.photos, gw.videos, gw.animations)
	}
}

func TestBroadcastEmptyRecipientList(t *testing.T) {
	d := NewDispatcher(newFakeGateway(), 0, nil, nil)

	summary, err := d.Broadcast(context.Background(), Content{Text: "hello"}, nil)
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if summary.Sent != 0 || summary.Failed != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestBroadcastStopsOnCancelledContext(t *testing.T) {
	gw := newFakeGateway()
	d := NewDispatcher(gw, 1, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := d.Broadcast(ctx, Content{Text: "hello"}, []int64{10, 20, 30})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("first recipient is served before the delay gate, got %+v", summary)
	}
}

type fakeGateway struct {
	mu         sync.Mutex
	texts      map[int64][]string
	photos     int
	videos     int
	animations int
	failFor    map[int64]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		texts:   make(map[int64][]string),
		failFor: make(map[int64]error),
	}
}

func (g *fakeGateway) SendText(_ context.Context, chatID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failFor[chatID]; err != nil {
		return err
	}
	g.texts[chatID] = append(g.texts[chatID], text)
	return nil
}

func (g *fakeGateway) SendPhoto(_ context.Context, chatID int64, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failFor[chatID]; err != nil {
		return err
	}
	g.photos++
	return nil
}

func (g *fakeGateway) SendVideo(_ context.Context, chatID int64, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failFor[chatID]; err != nil {
		return err
	}
	g.videos++
	return nil
}

func (g *fakeGateway) SendAnimation(_ context.Context, chatID int64, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failFor[chatID]; err != nil {
		return err
	}
	g.animations++
	return nil
}

func (g *fakeGateway) textsFor(chatID int64) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.texts[chatID]...)
}
