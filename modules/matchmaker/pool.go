package matchmaker

import "sync"

// State is a username's position in the pairing state machine.
type State string

// Pairing states. Unseen is never stored; it is the absence of an entry.
const (
	StateUnseen  State = "unseen"
	StateWaiting State = "waiting"
	StateMatched State = "matched"
)

// PairingResult is the outcome of a pairing request or status lookup.
type PairingResult struct {
	State   State  `json:"state"`
	Room    string `json:"room,omitempty"`
	Partner string `json:"partner,omitempty"`
}

// Matched reports whether the result carries a room.
func (r PairingResult) Matched() bool {
	return r.State == StateMatched
}

// waitingUser is one pool entry. An empty room means the user is still waiting.
type waitingUser struct {
	username string
	room     string
	partner  string
}

// Pool pairs waiting usernames into two-party rooms, first come first served.
// Every mutation runs under a single mutex covering both the index and the
// arrival order. order holds only waiting entries; matched entries live in
// entries alone until released.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*waitingUser
	order   []*waitingUser
	newRoom func() string
}

// NewPool creates an empty pool. newRoom allocates room identifiers; nil uses
// GenerateRoomID.
func NewPool(newRoom func() string) *Pool {
	if newRoom == nil {
		newRoom = GenerateRoomID
	}
	return &Pool{
		entries: make(map[string]*waitingUser),
		newRoom: newRoom,
	}
}

// RequestPairing matches username with the longest-waiting other user, or
// enqueues it. A user that is already matched gets its current room back.
func (p *Pool) RequestPairing(username string) PairingResult {
	result, _ := p.Pair(username)
	return result
}

// Pair is RequestPairing that also reports whether this call created the
// match. It is true exactly once per room, for the caller that completed it.
func (p *Pool) Pair(username string) (PairingResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	self, known := p.entries[username]
	if known && self.room != "" {
		return self.result(), false
	}

	for i, candidate := range p.order {
		if candidate.username == username {
			continue
		}

		room := p.newRoom()
		candidate.room = room
		candidate.partner = username
		p.order = append(p.order[:i], p.order[i+1:]...)

		if known {
			p.removeWaiting(self)
		} else {
			self = &waitingUser{username: username}
			p.entries[username] = self
		}
		self.room = room
		self.partner = candidate.username

		return self.result(), true
	}

	if !known {
		entry := &waitingUser{username: username}
		p.entries[username] = entry
		p.order = append(p.order, entry)
	}
	return PairingResult{State: StateWaiting}, false
}

// Release drops username from the pool, clearing any room assignment.
// Unknown usernames are a no-op. The returned result is the state before release.
// The partner of a released matched user keeps its room until it releases too.
func (p *Pool) Release(username string) PairingResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[username]
	if !ok {
		return PairingResult{State: StateUnseen}
	}
	before := entry.result()

	delete(p.entries, username)
	if entry.room == "" {
		p.removeWaiting(entry)
	}
	return before
}

// removeWaiting drops entry from the arrival order. Callers hold p.mu.
func (p *Pool) removeWaiting(entry *waitingUser) {
	for i, e := range p.order {
		if e == entry {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Status returns the current state of username without changing it.
func (p *Pool) Status(username string) PairingResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[username]
	if !ok {
		return PairingResult{State: StateUnseen}
	}
	return entry.result()
}

// Snapshot holds pool occupancy counts.
type Snapshot struct {
	Waiting int `json:"waiting"`
	Matched int `json:"matched"`
}

// Snapshot returns the number of waiting and matched entries.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiting := len(p.order)
	return Snapshot{Waiting: waiting, Matched: len(p.entries) - waiting}
}

func (w *waitingUser) result() PairingResult {
	if w.room == "" {
		return PairingResult{State: StateWaiting}
	}
	return PairingResult{State: StateMatched, Room: w.room, Partner: w.partner}
}
