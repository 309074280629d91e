package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voxelgen/internal/world"
)

func key(stage string) Key {
	return Key{Coord: world.ChunkCoord{X: 1, Y: 2, Z: 3}, Stage: stage}
}

func TestSubmitAndWait(t *testing.T) {
	p := NewPool(2, 4, nil)
	defer p.Shutdown()

	h, err := Submit(p, key("density"), func(context.Context) (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	v, err := h.Wait()
	if err != nil || v != 42 {
		t.Fatalf("Wait = %d, %v", v, err)
	}
	if !h.Done() {
		t.Fatalf("Done false after Wait")
	}
	if v, ok, err := h.Take(); !ok || err != nil || v != 42 {
		t.Fatalf("Take = %d, %v, %v", v, err, ok)
	}
}

// blockWorker occupies the single worker of p until release is closed.
func blockWorker(t *testing.T, p *Pool) (release chan struct{}, h *Handle[struct{}]) {
	t.Helper()
	started := make(chan struct{})
	release = make(chan struct{})
	h, err := Submit(p, key("block"), func(context.Context) (struct{}, error) {
		close(started)
		<-release
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("blocking job never started")
	}
	return release, h
}

func TestTakeBeforeDone(t *testing.T) {
	p := NewPool(1, 1, nil)
	defer p.Shutdown()
	release, h := blockWorker(t, p)
	if _, ok, _ := h.Take(); ok {
		t.Fatalf("Take reported a running job as finished")
	}
	close(release)
	h.Wait()
}

func TestSubmitQueueFull(t *testing.T) {
	p := NewPool(1, 1, nil)
	defer p.Shutdown()
	release, _ := blockWorker(t, p)
	defer close(release)

	if _, err := Submit(p, key("a"), func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("first queued job rejected: %v", err)
	}
	if _, err := Submit(p, key("b"), func(context.Context) (int, error) { return 2, nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if p.QueueLen() != 1 {
		t.Fatalf("QueueLen = %d, want 1", p.QueueLen())
	}
}

func TestCancelBeforeStart(t *testing.T) {
	p := NewPool(1, 2, nil)
	defer p.Shutdown()
	release, _ := blockWorker(t, p)

	ran := false
	h, err := Submit(p, key("queued"), func(context.Context) (int, error) {
		ran = true
		return 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	h.Cancel()
	close(release)
	if _, err := h.Wait(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if ran {
		t.Fatalf("cancelled job ran")
	}
}

func TestPanicRecovered(t *testing.T) {
	p := NewPool(1, 1, nil)
	defer p.Shutdown()
	h, err := Submit(p, key("mesh"), func(context.Context) (int, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.Wait()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want recovered panic", err)
	}

	// The worker survives the panic.
	h2, err := Submit(p, key("after"), func(context.Context) (int, error) { return 7, nil })
	if err != nil {
		t.Fatal(err)
	}
	if v, err := h2.Wait(); err != nil || v != 7 {
		t.Fatalf("follow-up job = %d, %v", v, err)
	}
}

func TestShutdownCompletesHandles(t *testing.T) {
	p := NewPool(1, 4, nil)
	release, running := blockWorker(t, p)
	queued, err := Submit(p, key("queued"), func(context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	p.Shutdown()

	if !running.Done() || !queued.Done() {
		t.Fatalf("handles left incomplete after Shutdown")
	}
	if _, err := queued.Wait(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("queued job err = %v, want ErrCancelled", err)
	}
	if _, err := Submit(p, key("late"), func(context.Context) (int, error) { return 0, nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	p.Shutdown()
}
