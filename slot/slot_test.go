// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package slot

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_zeroValuePanics(t *testing.T) {
	var s Slot[int]
	assert.Panics(t, func() { s.Put(1) })
	assert.Panics(t, func() { _, _ = s.TryTake() })
	assert.Panics(t, func() { _ = s.Full() })
}

func TestSlot_putTakeTransitions(t *testing.T) {
	s := New[string]()
	require.False(t, s.Full())

	s.Put(`a`)
	require.True(t, s.Full())
	require.ErrorIs(t, s.TryPut(`b`), ErrBusy)

	require.Equal(t, `a`, s.Take())
	require.False(t, s.Full())

	require.NoError(t, s.TryPut(`c`))
	v, err := s.TryTake()
	require.NoError(t, err)
	require.Equal(t, `c`, v)
}

func TestSlot_readIsNonConsuming(t *testing.T) {
	t.Run(`unit`, func(t *testing.T) {
		s := NewUnit()
		s.Put(Unit{})
		s.Read()
		require.True(t, s.Full())
		_, err := s.TryRead()
		require.NoError(t, err)
		s.Take()
		require.False(t, s.Full())
	})

	t.Run(`payload`, func(t *testing.T) {
		s := New[int]()
		s.Put(42)
		require.Equal(t, 42, s.Read())
		require.Equal(t, 42, s.Read())
		v, err := s.TimedRead(time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, 42, v)
		require.Equal(t, 42, s.Take())
	})
}

func TestSlot_takeIsConsuming(t *testing.T) {
	s := New[int]()
	s.Put(7)
	require.Equal(t, 7, s.Take())
	_, err := s.TryTake()
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.TryRead()
	require.ErrorIs(t, err, ErrBusy)
}

func TestSlot_takeClearsValue(t *testing.T) {
	s := New[*int]()
	v := new(int)
	s.Put(v)
	require.Same(t, v, s.Take())
	require.Nil(t, s.value)
}

func TestSlot_TryTake_emptyReturnsImmediately(t *testing.T) {
	s := New[int]()
	start := time.Now()
	_, err := s.TryTake()
	elapsed := time.Since(start)
	require.ErrorIs(t, err, ErrBusy)
	assert.Less(t, elapsed, 10*time.Millisecond)
}

func TestSlot_Try_lockContended(t *testing.T) {
	s := New[int]()
	s.lock()

	require.ErrorIs(t, s.TryPut(1), ErrBusy)
	_, err := s.TryRead()
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.TryTake()
	require.ErrorIs(t, err, ErrBusy)

	s.unlock()
	require.NoError(t, s.TryPut(1))
}

func TestSlot_Timed_lockAcquisitionBoundedByDeadline(t *testing.T) {
	s := New[int]()
	s.lock()
	defer s.unlock()

	start := time.Now()
	err := s.TimedPut(20*time.Millisecond, 1)
	elapsed := time.Since(start)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestSlot_TimedTake_timeoutAccuracy(t *testing.T) {
	s := New[int]()
	start := time.Now()
	_, err := s.TimedTake(50 * time.Millisecond)
	elapsed := time.Since(start)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
	require.Zero(t, s.notEmpty.len(), `timed out waiter must deregister`)
}

func TestSlot_TimedPut_full(t *testing.T) {
	s := New[int]()
	s.Put(1)
	start := time.Now()
	err := s.TimedPut(30*time.Millisecond, 2)
	elapsed := time.Since(start)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	require.Equal(t, 1, s.Take(), `timed out put must not modify the slot`)
	require.Zero(t, s.notFull.len())
}

func TestSlot_TimedRead_zeroTimeoutSucceedsWhenReady(t *testing.T) {
	s := New[int]()
	s.Put(3)
	v, err := s.TimedRead(0)
	require.NoError(t, err)
	require.Equal(t, 3, v)

	v, err = s.TimedTake(-time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, v)

	_, err = s.TimedTake(0)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSlot_TimedTake_satisfiedBeforeDeadline(t *testing.T) {
	s := New[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Put(99)
	}()
	v, err := s.TimedTake(time.Second)
	require.NoError(t, err)
	require.Equal(t, 99, v)
}

func TestSlot_TakeContext_canceled(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := s.TakeContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, ErrTimeout))
}

func TestSlot_Put_blocksUntilTake(t *testing.T) {
	s := New[int]()
	s.Put(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Put(2)
	}()

	select {
	case <-done:
		t.Fatal(`put should block while full`)
	case <-time.After(20 * time.Millisecond):
	}

	require.Equal(t, 1, s.Take())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`put did not unblock`)
	}
	require.Equal(t, 2, s.Take())
}

func TestSlot_mutualExclusivity(t *testing.T) {
	const n = 10000
	s := New[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Put(i)
		}
	}()

	for i := 0; i < n; i++ {
		v := s.Take()
		if v != i {
			t.Fatalf(`expected %d, got %d`, i, v)
		}
	}
	wg.Wait()
	require.False(t, s.Full())
}

func TestSlot_manyWaiters_eachValueDeliveredOnce(t *testing.T) {
	const n = 32
	s := New[int]()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v := s.Take()
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}

	for i := 0; i < n; i++ {
		s.Put(i)
	}
	wg.Wait()

	sort.Ints(got)
	for i := 0; i < n; i++ {
		require.Equal(t, i, got[i])
	}
}

func TestSlot_timedAndBlockingWaitersMixed(t *testing.T) {
	s := New[int]()

	// timed waiters that expire, leaving a blocking waiter that must still
	// receive the value
	for i := 0; i < 4; i++ {
		go func() { _, _ = s.TimedTake(5 * time.Millisecond) }()
	}
	result := make(chan int, 1)
	go func() { result <- s.Take() }()

	time.Sleep(30 * time.Millisecond)
	s.Put(5)

	select {
	case v := <-result:
		require.Equal(t, 5, v)
	case <-time.After(time.Second):
		t.Fatal(`blocking taker missed the wakeup`)
	}
}

func TestSlot_unitReadBlocksUntilPut(t *testing.T) {
	s := NewUnit()
	start := time.Now()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Put(Unit{})
	}()
	s.Read()
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.True(t, s.Full())
}

func TestSlot_Read_wakesAllParkedReaders(t *testing.T) {
	const readers = 16
	s := NewUnit()

	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			s.Read()
		}()
	}
	time.Sleep(20 * time.Millisecond)

	s.Put(Unit{})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`a parked reader was not released by a single put`)
	}
	require.True(t, s.Full())
}

func TestSlot_Read_passesWakeupToTaker(t *testing.T) {
	s := New[string]()

	read := make(chan string, 1)
	taken := make(chan string, 1)
	go func() { read <- s.Read() }()
	time.Sleep(10 * time.Millisecond)
	go func() { taken <- s.Take() }()
	time.Sleep(10 * time.Millisecond)

	s.Put(`v`)

	for _, ch := range [...]chan string{read, taken} {
		select {
		case v := <-ch:
			require.Equal(t, `v`, v)
		case <-time.After(time.Second):
			t.Fatal(`waiter missed the wakeup`)
		}
	}
	require.False(t, s.Full())
}

func TestSlot_TimedTake_readyWhileDeadlinePasses(t *testing.T) {
	s := New[int]()

	type result struct {
		v   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := s.TimedTake(20 * time.Millisecond)
		done <- result{v, err}
	}()

	deadline := time.Now().Add(time.Second)
	for {
		s.lock()
		n := s.notEmpty.len()
		s.unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal(`taker never parked`)
		}
		time.Sleep(time.Millisecond)
	}

	// the deadline passes while the lock is held, and the slot becomes full
	// before the taker can re-acquire it
	s.lock()
	time.Sleep(50 * time.Millisecond)
	s.store(7)
	s.unlock()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, 7, r.v)
	case <-time.After(time.Second):
		t.Fatal(`taker did not return`)
	}

	s.lock()
	defer s.unlock()
	require.Zero(t, s.notEmpty.len())
	require.False(t, s.full)
}
