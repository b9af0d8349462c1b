// Package world defines the collaborator contracts for the live world
// (player presence, particle rendering, messaging) and an in-memory world
// that implements them.
package world

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/model"
)

// Emission is one SpawnParticles call.
type Emission struct {
	Points   []r3.Vec
	Particle model.Particle
}

// Message is one delivered notification.
type Message struct {
	Kind  string // "action_bar", "title", "boss_bar", "hide_boss_bar"
	Text  string
	Title Title
	Bar   BossBar
}

type player struct {
	world string
	pos   r3.Vec
}

// Memory is an in-memory world. It tracks online players and records every
// emission and message per player. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	players   map[uuid.UUID]player
	emissions map[uuid.UUID][]Emission
	messages  map[uuid.UUID][]Message

	particles atomic.Int64 // total particles drawn
	keep      bool         // record emissions, not just count particles
}

var (
	_ Presence     = (*Memory)(nil)
	_ ParticleSink = (*Memory)(nil)
	_ Messenger    = (*Memory)(nil)
)

// NewMemory creates an empty world. With record set, every emission is kept;
// otherwise only the particle count is.
func NewMemory(record bool) *Memory {
	return &Memory{
		players:   make(map[uuid.UUID]player),
		emissions: make(map[uuid.UUID][]Emission),
		messages:  make(map[uuid.UUID][]Message),
		keep:      record,
	}
}

// Join puts a player online at pos.
func (m *Memory) Join(id uuid.UUID, world string, pos r3.Vec) {
	m.mu.Lock()
	m.players[id] = player{world: world, pos: pos}
	m.mu.Unlock()
}

// Quit takes a player offline.
func (m *Memory) Quit(id uuid.UUID) {
	m.mu.Lock()
	delete(m.players, id)
	m.mu.Unlock()
}

// Move relocates an online player and returns the previous position.
func (m *Memory) Move(id uuid.UUID, world string, pos r3.Vec) (prevWorld string, prev r3.Vec, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return "", r3.Vec{}, false
	}
	m.players[id] = player{world: world, pos: pos}
	return p.world, p.pos, true
}

// IsOnline implements Presence.
func (m *Memory) IsOnline(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.players[id]
	return ok
}

// Locate implements Presence.
func (m *Memory) Locate(id uuid.UUID) (string, r3.Vec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return p.world, p.pos, ok
}

// Occupants implements Presence. Order is by id.
func (m *Memory) Occupants(world string) []Occupant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Occupant
	for id, p := range m.players {
		if p.world == world {
			result = append(result, Occupant{ID: id, Position: p.pos})
		}
	}
	slices.SortFunc(result, func(a, b Occupant) int { return slices.Compare(a.ID[:], b.ID[:]) })
	return result
}

// SpawnParticles implements ParticleSink.
func (m *Memory) SpawnParticles(owner uuid.UUID, points []r3.Vec, p model.Particle) {
	m.particles.Add(int64(len(points)))
	if !m.keep {
		return
	}

	m.mu.Lock()
	m.emissions[owner] = append(m.emissions[owner], Emission{Points: points, Particle: p})
	m.mu.Unlock()
}

// SendActionBar implements Messenger.
func (m *Memory) SendActionBar(owner uuid.UUID, text string) {
	m.record(owner, Message{Kind: "action_bar", Text: text})
}

// ShowTitle implements Messenger.
func (m *Memory) ShowTitle(owner uuid.UUID, title Title) {
	m.record(owner, Message{Kind: "title", Text: title.Text, Title: title})
}

// ShowBossBar implements Messenger.
func (m *Memory) ShowBossBar(owner uuid.UUID, bar BossBar) {
	m.record(owner, Message{Kind: "boss_bar", Text: bar.Text, Bar: bar})
}

// HideBossBar implements Messenger.
func (m *Memory) HideBossBar(owner uuid.UUID, bar BossBar) {
	m.record(owner, Message{Kind: "hide_boss_bar", Text: bar.Text, Bar: bar})
}

// Emissions returns a copy of the emissions recorded for owner.
func (m *Memory) Emissions(owner uuid.UUID) []Emission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.emissions[owner])
}

// Messages returns a copy of the messages delivered to owner.
func (m *Memory) Messages(owner uuid.UUID) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.messages[owner])
}

// ParticlesDrawn returns the total number of particles emitted.
func (m *Memory) ParticlesDrawn() int64 {
	return m.particles.Load()
}

// Reset drops recorded emissions and messages.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.emissions)
	clear(m.messages)
	m.particles.Store(0)
}

func (m *Memory) record(owner uuid.UUID, msg Message) {
	m.mu.Lock()
	m.messages[owner] = append(m.messages[owner], msg)
	m.mu.Unlock()
}
