package update

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestDialProbe_Online(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := ln.Addr().String()

	probe := NewDialProbe(addr, time.Second)
	if !probe.Online(context.Background()) {
		t.Error("listening address should be online")
	}

	ln.Close()
	if probe.Online(context.Background()) {
		t.Error("closed address should be offline")
	}

	if !NewDialProbe("", time.Second).Online(context.Background()) {
		t.Error("probe without an address assumes online")
	}
}

func TestDialProbe_WatchReportsTransitions(t *testing.T) {
	var mu sync.Mutex
	up := true
	mock := clock.NewMock()
	probe := &DialProbe{
		Address:  "probe:53",
		Interval: 15 * time.Second,
		Timeout:  time.Second,
		Clock:    mock,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			if !up {
				return nil, errors.New("unreachable")
			}
			client, server := net.Pipe()
			server.Close()
			return client, nil
		},
	}
	setUp := func(v bool) {
		mu.Lock()
		up = v
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan bool, 8)
	started := make(chan struct{})
	go func() {
		close(started)
		probe.Watch(ctx, true, func(online bool) { changes <- online })
	}()
	<-started
	// Let Watch create its ticker before advancing the clock
	time.Sleep(20 * time.Millisecond)

	// No transition
	mock.Add(15 * time.Second)
	select {
	case v := <-changes:
		t.Fatalf("unexpected change %v", v)
	case <-time.After(20 * time.Millisecond):
	}

	setUp(false)
	mock.Add(15 * time.Second)
	if v := <-changes; v != false {
		t.Errorf("change = %v, want false", v)
	}

	// Still down, no duplicate report
	mock.Add(15 * time.Second)
	select {
	case v := <-changes:
		t.Fatalf("duplicate change %v", v)
	case <-time.After(20 * time.Millisecond):
	}

	setUp(true)
	mock.Add(15 * time.Second)
	if v := <-changes; v != true {
		t.Errorf("change = %v, want true", v)
	}
}
