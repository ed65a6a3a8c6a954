package asset

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/rendercore/core"
)

type recordingListener struct {
	states []LoadingState
}

func (l *recordingListener) OnLoadingStateChange(r *Resource) {
	l.states = append(l.states, r.LoadingState())
}

func TestLoadingStateString(t *testing.T) {
	tests := []struct {
		s    LoadingState
		want string
	}{
		{Unloaded, "Unloaded"},
		{Loading, "Loading"},
		{Loaded, "Loaded"},
		{Unloading, "Unloading"},
		{LoadingState(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("LoadingState(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestResourceNotifiesEveryTransition(t *testing.T) {
	r := NewResource(core.AssetID(7))
	l := &recordingListener{}
	r.ConnectListener(l)
	r.ConnectListener(l) // duplicate is ignored

	r.SetLoadingState(Loading)
	r.SetLoadingState(Loaded)
	r.SetLoadingState(Unloading)
	r.SetLoadingState(Unloaded)

	want := []LoadingState{Loading, Loaded, Unloading, Unloaded}
	if len(l.states) != len(want) {
		t.Fatalf("listener saw %v, want %v", l.states, want)
	}
	for i := range want {
		if l.states[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, l.states[i], want[i])
		}
	}

	r.DisconnectListener(l)
	r.SetLoadingState(Loaded)
	if len(l.states) != len(want) {
		t.Errorf("disconnected listener was notified")
	}
}

func TestConnectToLoadedResourceNotifiesImmediately(t *testing.T) {
	r := NewResource(core.AssetID(1))
	r.SetLoadingState(Loaded)

	l := &recordingListener{}
	r.ConnectListener(l)
	if len(l.states) != 1 || l.states[0] != Loaded {
		t.Fatalf("listener saw %v, want [Loaded]", l.states)
	}
}

func TestDispatcherRunsInPostOrder(t *testing.T) {
	d := NewDispatcher()
	var got []int
	for i := range 3 {
		d.Post(func() { got = append(got, i) })
	}
	d.Post(nil)
	if d.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", d.Pending())
	}
	if n := d.Dispatch(); n != 3 {
		t.Fatalf("Dispatch() = %d, want 3", n)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d", i, v)
		}
	}
	if n := d.Dispatch(); n != 0 {
		t.Errorf("second Dispatch() = %d, want 0", n)
	}
}

func TestDispatcherConcurrentPost(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	const goroutines = 50
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Post(func() {})
		}()
	}
	wg.Wait()
	if n := d.Dispatch(); n != goroutines {
		t.Errorf("Dispatch() = %d, want %d", n, goroutines)
	}
}

func TestStreamerLoad(t *testing.T) {
	d := NewDispatcher()
	s := NewStreamer(d, WithMaxConcurrentLoads(2))
	defer s.Close()

	r := NewResource(core.AssetID(3))
	l := &recordingListener{}
	r.ConnectListener(l)

	applied := false
	s.Load(r, func(context.Context) (func() error, error) {
		return func() error {
			applied = true
			return nil
		}, nil
	})
	if r.LoadingState() != Loading {
		t.Fatalf("state after Load = %v, want Loading", r.LoadingState())
	}

	s.Wait()
	if applied {
		t.Fatal("apply ran before Dispatch")
	}
	d.Dispatch()

	if !applied {
		t.Error("apply did not run")
	}
	if r.LoadingState() != Loaded {
		t.Errorf("state = %v, want Loaded", r.LoadingState())
	}
	if len(l.states) != 2 || l.states[0] != Loading || l.states[1] != Loaded {
		t.Errorf("listener saw %v, want [Loading Loaded]", l.states)
	}
}

func TestStreamerLoadFailure(t *testing.T) {
	tests := []struct {
		name string
		load LoadFunc
	}{
		{"load error", func(context.Context) (func() error, error) {
			return nil, errors.New("boom")
		}},
		{"apply error", func(context.Context) (func() error, error) {
			return func() error { return errors.New("bad data") }, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher()
			s := NewStreamer(d)
			defer s.Close()

			r := NewResource(core.AssetID(9))
			s.Load(r, tt.load)
			s.Wait()
			d.Dispatch()
			if r.LoadingState() != Unloaded {
				t.Errorf("state = %v, want Unloaded", r.LoadingState())
			}
		})
	}
}
