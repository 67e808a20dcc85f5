package queue

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

var bg = context.Background()

// TestBasicOperations tests basic push and consume functionality
func TestBasicOperations(t *testing.T) {
	q := NewMPSC[int](16)
	defer q.Close()

	for i := 0; i < 10; i++ {
		if err := q.Push(bg, i); err != nil {
			t.Fatalf("Failed to push item %d: %v", i, err)
		}
	}

	if q.Len() != 10 {
		t.Errorf("Expected 10 queued items, got %d", q.Len())
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %v", i, val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	// Make sure queue is empty
	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", val)
	case <-time.After(10 * time.Millisecond):
	}
}

// TestCapacityFloor verifies that a non-positive capacity still yields a usable queue
func TestCapacityFloor(t *testing.T) {
	for _, c := range []int{-3, 0, 1} {
		q := NewMPSC[int](c)
		if q.Cap() != 1 {
			t.Errorf("NewMPSC(%d): expected capacity 1, got %d", c, q.Cap())
		}
		q.Close()
	}
}

// TestConcurrentProducers verifies the queue works correctly with multiple producers
func TestConcurrentProducers(t *testing.T) {
	q := NewMPSC[int](32)
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000
	totalItems := numProducers * itemsPerProducer

	received := make(map[int]bool)
	// last value seen per producer, values of one producer must arrive in order
	last := make([]int, numProducers)
	for i := range last {
		last[i] = -1
	}

	done := make(chan struct{})
	receivedCount := 0

	go func() {
		defer close(done)

		for receivedCount < totalItems {
			select {
			case val := <-q.Recv():
				if received[val] {
					t.Errorf("Duplicate item received: %v", val)
				}
				received[val] = true
				receivedCount++

				producer, seq := val/itemsPerProducer, val%itemsPerProducer
				if seq <= last[producer] {
					t.Errorf("Producer %d: item %d received after %d", producer, seq, last[producer])
				}
				last[producer] = seq
			case <-time.After(2 * time.Second):
				t.Errorf("Timeout waiting for items, received %d of %d", receivedCount, totalItems)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)

	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()

			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				if err := q.Push(bg, base+i); err != nil {
					t.Errorf("Producer %d failed to push item %d: %v", producerID, i, err)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout waiting for consumer to finish")
	}

	if receivedCount != totalItems {
		t.Errorf("Expected %d items, got %d", totalItems, receivedCount)
	}
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewMPSC[int](8)

	for i := 0; i < 5; i++ {
		if err := q.Push(bg, i); err != nil {
			t.Fatalf("Failed to push item %d: %v", i, err)
		}
	}

	q.Close()
	q.Close() // second close must not panic

	if !q.IsClosed() {
		t.Error("IsClosed should report true after Close")
	}

	if err := q.Push(bg, 100); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}

	// existing items are still delivered
	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %v", i, val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	if _, ok := <-q.Recv(); ok {
		t.Error("Channel should be closed but is still open")
	}
}

// TestSelectStatement tests the queue in a select statement
func TestSelectStatement(t *testing.T) {
	q := NewMPSC[string](1)
	defer q.Close()

	otherChan := make(chan int, 1)
	otherChan <- 42

	select {
	case val := <-q.Recv():
		t.Errorf("Should not receive from empty queue, got %v", val)
	case <-otherChan:
	default:
		t.Error("select defaulted, should have received from otherChan")
	}

	if err := q.Push(bg, "test"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	select {
	case val := <-q.Recv():
		if val != "test" {
			t.Errorf("Expected 'test', got %v", val)
		}
	case <-otherChan:
		t.Error("Should have received from queue, not otherChan")
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for item from queue")
	}
}

// TestOrderingUnderLoad tests that items of a single producer are received in order
func TestOrderingUnderLoad(t *testing.T) {
	q := NewMPSC[int](4)
	defer q.Close()

	const itemCount = 10000
	go func() {
		for i := 0; i < itemCount; i++ {
			if err := q.Push(bg, i); err != nil {
				return
			}
		}
	}()

	prev := -1
	outOfOrderCount := 0

	for i := 0; i < itemCount; i++ {
		select {
		case val := <-q.Recv():
			if val < prev {
				outOfOrderCount++
			}
			prev = val
		case <-time.After(1 * time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	if outOfOrderCount > 0 {
		t.Errorf("Found %d items out of order with single producer", outOfOrderCount)
	}
}

// TestPushBlocksWhenFull verifies the backpressure of a full queue
func TestPushBlocksWhenFull(t *testing.T) {
	q := NewMPSC[int](2)
	defer q.Close()

	_ = q.Push(bg, 1)
	_ = q.Push(bg, 2)

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(bg, 3)
	}()

	select {
	case err := <-pushed:
		t.Fatalf("Push on a full queue should block, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// free one slot, the blocked producer completes
	<-q.Recv()

	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("Blocked push failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Blocked push did not complete after a slot became free")
	}

	if q.Len() != 2 {
		t.Errorf("Expected 2 queued items, got %d", q.Len())
	}
}

// TestPushContextCancel verifies that a blocked Push honours its context
func TestPushContextCancel(t *testing.T) {
	q := NewMPSC[int](1)
	defer q.Close()

	_ = q.Push(bg, 1)

	ctx, cancel := context.WithTimeout(bg, 20*time.Millisecond)
	defer cancel()

	if err := q.Push(ctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}

	if q.Len() != 1 {
		t.Errorf("Cancelled push must not enqueue, queue has %d items", q.Len())
	}
}

// TestCloseUnblocksProducers verifies that Close wakes up producers waiting on a full queue
func TestCloseUnblocksProducers(t *testing.T) {
	q := NewMPSC[int](1)
	_ = q.Push(bg, 1)

	const waiting = 5
	errs := make(chan error, waiting)
	for i := 0; i < waiting; i++ {
		go func(v int) {
			errs <- q.Push(bg, v)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	for i := 0; i < waiting; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrClosed) {
				t.Errorf("Expected ErrClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Producer still blocked after Close")
		}
	}

	// the item accepted before Close is still there
	if v, ok := <-q.Recv(); !ok || v != 1 {
		t.Errorf("Expected queued item 1, got %v (ok=%v)", v, ok)
	}
}

// BenchmarkSingleProducer benchmarks the queue with a single producer
func BenchmarkSingleProducer(b *testing.B) {
	q := NewMPSC[int](32)
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Push(bg, i)
	}
}

// BenchmarkMultiProducer benchmarks the queue with multiple producers
func BenchmarkMultiProducer(b *testing.B) {
	q := NewMPSC[int](32)
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = q.Push(bg, i)
			i++
		}
	})
}
