package observable

import (
	"sync"
	"testing"
)

func TestSubscribe_ReplaysCurrentValue(t *testing.T) {
	v := New(7)

	var got []int
	v.Subscribe(func(n int) { got = append(got, n) })

	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("got %v, want [7]", got)
	}

	v.Set(8)
	v.Set(8)

	want := []int{7, 8, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestUpdate_SkipsEqualValues(t *testing.T) {
	v := NewComparable(false)

	var got []bool
	v.Subscribe(func(b bool) { got = append(got, b) })

	if v.Update(false) {
		t.Error("Update(false) should not emit")
	}
	if !v.Update(true) {
		t.Error("Update(true) should emit")
	}
	if v.Update(true) {
		t.Error("second Update(true) should not emit")
	}

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("got %v, want [false true]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	v := New("a")

	calls := 0
	unsubscribe := v.Subscribe(func(string) { calls++ })
	unsubscribe()
	v.Set("b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (replay only)", calls)
	}
	if v.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", v.Subscribers())
	}
}

func TestClose_DetachesSubscribers(t *testing.T) {
	v := New(0)

	calls := 0
	v.Subscribe(func(int) { calls++ })
	v.Close()
	v.Set(1)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if v.Get() != 1 {
		t.Errorf("Get() = %d, want 1", v.Get())
	}

	v.Subscribe(func(int) { calls++ })
	if calls != 1 {
		t.Error("Subscribe after Close should not register")
	}
}

func TestSet_OrderAcrossSubscribers(t *testing.T) {
	v := New(0)

	var mu sync.Mutex
	var order []string
	v.Subscribe(func(n int) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	v.Subscribe(func(n int) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	order = nil
	v.Set(1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestSet_Concurrent(t *testing.T) {
	v := New(0)

	var mu sync.Mutex
	seen := 0
	v.Subscribe(func(int) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v.Set(n)
		}(i)
	}
	wg.Wait()

	if seen != 51 {
		t.Errorf("seen = %d, want 51", seen)
	}
}
