package shutdown

import (
	"context"
	"reflect"
	"testing"
)

func TestShutdownRunsCleanupsOnceInReverse(t *testing.T) {
	h := New(context.Background())

	var order []int
	h.AddCleanup(func() { order = append(order, 1) })
	h.AddCleanup(func() { order = append(order, 2) })

	h.Shutdown()
	h.Shutdown()

	if !reflect.DeepEqual(order, []int{2, 1}) {
		t.Errorf("cleanup order = %v, want [2 1]", order)
	}
	if h.Context().Err() == nil {
		t.Error("context should be cancelled after Shutdown")
	}
}

func TestGoWaitsForWork(t *testing.T) {
	h := New(context.Background())

	cancelled := make(chan bool, 1)
	h.Go(func(ctx context.Context) {
		<-ctx.Done()
		cancelled <- true
	})

	h.Shutdown()
	h.Wait()

	select {
	case <-cancelled:
	default:
		t.Error("work should observe cancellation before Wait returns")
	}
}

func TestParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := New(parent)
	h.Listen()

	cancel()
	<-h.Context().Done()
}
