package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/gateway"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New(zerolog.Nop())
	defer s.Close()

	t.Run("create and read back", func(t *testing.T) {
		id, err := s.CreateWithGeneratedID(ctx, "circles", map[string]any{"name": "Analisi", "members": []string{"u1"}})
		assert.Equal(t, err, nil)
		doc, err := s.GetOne(ctx, "circles", id)
		assert.Equal(t, err, nil)
		assert.Equal(t, doc.Data["name"], "Analisi")
		assert.Equal(t, doc.Data["members"], []any{"u1"})
		assert.Equal(t, doc.Version, int64(1))
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := s.GetOne(ctx, "circles", "nope")
		assert.Equal(t, errors.Is(err, gateway.ErrNotFound), true)
		err = s.UpdateFields(ctx, "circles", "nope", map[string]any{"x": 1})
		assert.Equal(t, errors.Is(err, gateway.ErrNotFound), true)
	})

	t.Run("version precondition", func(t *testing.T) {
		assert.Equal(t, s.SetAt(ctx, "noteRequests", "r1", map[string]any{"status": "open"}), nil)
		doc, _ := s.GetOne(ctx, "noteRequests", "r1")

		err := s.UpdateFields(ctx, "noteRequests", "r1", map[string]any{"status": "fulfilled"}, gateway.IfVersion(doc.Version))
		assert.Equal(t, err, nil)
		err = s.UpdateFields(ctx, "noteRequests", "r1", map[string]any{"status": "fulfilled"}, gateway.IfVersion(doc.Version))
		assert.Equal(t, errors.Is(err, gateway.ErrVersionConflict), true)
	})

	t.Run("concurrent unions keep every element", func(t *testing.T) {
		assert.Equal(t, s.SetAt(ctx, "circles", "c1", map[string]any{"chat": []any{}}), nil)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				msg := map[string]any{"id": fmt.Sprintf("m%d", i), "text": "ciao"}
				if err := s.UpdateFields(ctx, "circles", "c1", map[string]any{"chat": gateway.ArrayUnion(msg)}); err != nil {
					t.Errorf("UpdateFields failed: %v", err)
				}
			}(i)
		}
		wg.Wait()
		doc, _ := s.GetOne(ctx, "circles", "c1")
		assert.Equal(t, len(doc.Data["chat"].([]any)), 20)
	})

	t.Run("returned data is a copy", func(t *testing.T) {
		doc, _ := s.GetOne(ctx, "circles", "c1")
		doc.Data["chat"] = nil
		again, _ := s.GetOne(ctx, "circles", "c1")
		assert.Equal(t, len(again.Data["chat"].([]any)), 20)
	})
}

func TestStoreSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := New(zerolog.Nop())
	defer s.Close()

	snaps := make(chan []gateway.Document, 16)
	errs := make(chan error, 16)
	unsub := s.Subscribe(gateway.Collection("notes").OrderByDesc("createdAt"),
		func(docs []gateway.Document) { snaps <- docs },
		func(err error) { errs <- err })
	defer unsub()

	first := next(t, snaps)
	assert.Equal(t, len(first), 0)

	assert.Equal(t, s.SetAt(ctx, "notes", "n1", map[string]any{"createdAt": "2025-01-01T00:00:00.000Z"}), nil)
	waitFor(t, snaps, func(docs []gateway.Document) bool { return len(docs) == 1 })

	assert.Equal(t, s.SetAt(ctx, "notes", "n2", map[string]any{"createdAt": "2025-02-01T00:00:00.000Z"}), nil)
	docs := waitFor(t, snaps, func(docs []gateway.Document) bool { return len(docs) == 2 })
	assert.Equal(t, docs[0].ID, "n2")
	assert.Equal(t, docs[1].ID, "n1")

	boom := errors.New("offline")
	s.SetFailure(boom)
	select {
	case err := <-errs:
		assert.Equal(t, errors.Is(err, boom), true)
	case <-time.After(2 * time.Second):
		t.Fatal("expected subscription error")
	}
	_, err := s.GetOne(ctx, "notes", "n1")
	assert.Equal(t, errors.Is(err, boom), true)

	s.SetFailure(nil)
	waitFor(t, snaps, func(docs []gateway.Document) bool { return len(docs) == 2 })
}

func next(t *testing.T, ch <-chan []gateway.Document) []gateway.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func waitFor(t *testing.T, ch <-chan []gateway.Document, ok func([]gateway.Document) bool) []gateway.Document {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs := <-ch:
			if ok(docs) {
				return docs
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
			return nil
		}
	}
}
