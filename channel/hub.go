package channel

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Hub is an in-process broadcast channel connecting several sessions to
// one shared document, typically a test pair or two panes of a demo.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	members map[int]*MemberConn
	nextID  int
}

// NewHub returns an empty hub. A nil logger disables logging.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, members: map[int]*MemberConn{}}
}

// Join adds a participant. Text committed by any other member arrives on
// the member's change callback, synchronously on the committer's
// goroutine.
func (h *Hub) Join(name string) *MemberConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := &MemberConn{hub: h, id: h.nextID, name: name}
	h.nextID++
	h.members[m.id] = m
	h.log.Debug("member joined",
		zap.String("name", name),
		zap.Int("members", len(h.members)))
	return m
}

// MemberConn is one participant's connection to a Hub.
type MemberConn struct {
	hub  *Hub
	id   int
	name string

	mu       sync.Mutex
	onChange func(text string)
}

var _ Remote = (*MemberConn)(nil)

// OnRemoteChange registers the callback for texts committed by other
// members. Replaces any earlier callback.
func (m *MemberConn) OnRemoteChange(fn func(text string)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Commit delivers text to every other member, in join order.
func (m *MemberConn) Commit(text string) error {
	h := m.hub
	h.mu.Lock()
	if _, ok := h.members[m.id]; !ok {
		h.mu.Unlock()
		return ErrClosed
	}
	ids := make([]int, 0, len(h.members))
	for id := range h.members {
		if id != m.id {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	targets := make([]*MemberConn, len(ids))
	for i, id := range ids {
		targets[i] = h.members[id]
	}
	h.mu.Unlock()

	for _, other := range targets {
		other.deliver(text)
	}
	h.log.Debug("commit fanned out",
		zap.String("from", m.name),
		zap.Int("to", len(targets)),
		zap.Int("len", len(text)))
	return nil
}

// Close removes the member from the hub. Later commits by others no longer
// reach its callback.
func (m *MemberConn) Close() error {
	h := m.hub
	h.mu.Lock()
	delete(h.members, m.id)
	h.mu.Unlock()
	return nil
}

func (m *MemberConn) deliver(text string) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}
