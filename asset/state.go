package asset

import (
	"slices"

	"github.com/gogpu/rendercore/core"
)

// LoadingState is the lifecycle state of a streamed resource.
type LoadingState uint8

const (
	// Unloaded means no data is resident. New resources start here.
	Unloaded LoadingState = iota
	// Loading means a load request is in flight.
	Loading
	// Loaded means the resource is usable.
	Loaded
	// Unloading means the resource is being torn down.
	Unloading
)

// String returns the state name.
func (s LoadingState) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Unloading:
		return "Unloading"
	default:
		return "Unknown"
	}
}

// Listener is notified on every loading state transition of the resources it
// is connected to. Notifications arrive on the render thread.
type Listener interface {
	OnLoadingStateChange(r *Resource)
}

// Resource carries the identity and loading state of a streamed asset. It is
// meant to be embedded.
//
// Resource is not safe for concurrent use; mutate it on the render thread
// only, typically from a function posted to a Dispatcher.
type Resource struct {
	id        core.AssetID
	state     LoadingState
	listeners []Listener
}

// NewResource returns an Unloaded resource with the given id.
func NewResource(id core.AssetID) *Resource {
	return &Resource{id: id}
}

// Init sets the id of an embedded Resource. The state is reset to Unloaded.
func (r *Resource) Init(id core.AssetID) {
	r.id = id
	r.state = Unloaded
}

// ID returns the asset id.
func (r *Resource) ID() core.AssetID { return r.id }

// LoadingState returns the current state.
func (r *Resource) LoadingState() LoadingState { return r.state }

// SetLoadingState changes the state and notifies every listener. Setting the
// current state again still notifies, so listeners see reloads.
func (r *Resource) SetLoadingState(s LoadingState) {
	r.state = s
	// Listeners may disconnect themselves from the callback.
	for _, l := range slices.Clone(r.listeners) {
		l.OnLoadingStateChange(r)
	}
}

// ConnectListener registers l. A listener connected to an already Loaded
// resource is notified immediately so it does not miss the transition.
func (r *Resource) ConnectListener(l Listener) {
	if slices.Contains(r.listeners, l) {
		return
	}
	r.listeners = append(r.listeners, l)
	if r.state == Loaded {
		l.OnLoadingStateChange(r)
	}
}

// DisconnectListener removes l. Unknown listeners are ignored.
func (r *Resource) DisconnectListener(l Listener) {
	if i := slices.Index(r.listeners, l); i >= 0 {
		r.listeners = slices.Delete(r.listeners, i, i+1)
	}
}

// NumberOfListeners returns how many listeners are connected.
func (r *Resource) NumberOfListeners() int { return len(r.listeners) }
