package scene

import "slices"

// Scene is the set of renderable managers drawn by a workspace.
type Scene struct {
	managers []*RenderableManager
}

// New returns an empty scene.
func New() *Scene { return &Scene{} }

// AddRenderableManager adds m; adding it twice is a no-op.
func (s *Scene) AddRenderableManager(m *RenderableManager) {
	if !slices.Contains(s.managers, m) {
		s.managers = append(s.managers, m)
	}
}

// RemoveRenderableManager removes m.
func (s *Scene) RemoveRenderableManager(m *RenderableManager) {
	if i := slices.Index(s.managers, m); i >= 0 {
		s.managers = slices.Delete(s.managers, i, i+1)
	}
}

// RenderableManagers returns the managers in insertion order. The slice must
// not be modified.
func (s *Scene) RenderableManagers() []*RenderableManager { return s.managers }

// Len returns the number of managers.
func (s *Scene) Len() int { return len(s.managers) }
