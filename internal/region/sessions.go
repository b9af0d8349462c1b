package region

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/regionvision/internal/model"
)

type corners struct {
	world      string
	pos1, pos2 *model.BlockPos
}

// Sessions keeps the two selection corners each owner has set with the
// selection tool. Safe for concurrent use.
type Sessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*corners
}

var _ Selections = (*Sessions)(nil)

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[uuid.UUID]*corners)}
}

// SetPos1 sets the first corner. Switching worlds resets the other corner.
func (s *Sessions) SetPos1(owner uuid.UUID, world string, p model.BlockPos) {
	s.set(owner, world, func(c *corners) { c.pos1 = &p })
}

// SetPos2 sets the second corner. Switching worlds resets the other corner.
func (s *Sessions) SetPos2(owner uuid.UUID, world string, p model.BlockPos) {
	s.set(owner, world, func(c *corners) { c.pos2 = &p })
}

// Clear forgets an owner's selection.
func (s *Sessions) Clear(owner uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, owner)
	s.mu.Unlock()
}

// CurrentSelection implements Selections. Selections of a single block are
// treated as incomplete.
func (s *Sessions) CurrentSelection(owner uuid.UUID) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.sessions[owner]
	if c == nil || c.pos1 == nil || c.pos2 == nil {
		return Selection{}, ErrNoSelection
	}
	box := model.NewBox(*c.pos1, *c.pos2)
	if box.Volume() < 2 {
		return Selection{}, fmt.Errorf("%w: selection is a single block", ErrNoSelection)
	}
	return Selection{World: c.world, Box: box}, nil
}

func (s *Sessions) set(owner uuid.UUID, world string, apply func(*corners)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.sessions[owner]
	if c == nil || c.world != world {
		c = &corners{world: world}
		s.sessions[owner] = c
	}
	apply(c)
}
