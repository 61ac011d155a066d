package model

const (
	gridSpacing   = 1
	maxSpiralRing = 100
)

// Positions assigns unique grid cells to the machines of one clan. A cell
// may be shared after an explicit move; it stays taken until every machine
// on it has moved away or been deleted.
type Positions struct {
	all   map[string]Position
	taken map[Position]int
	rings int
}

// NewPositions seeds an allocator with previously stored positions.
func NewPositions(stored map[string]Position) *Positions {
	p := &Positions{
		all:   make(map[string]Position, len(stored)),
		taken: make(map[Position]int, len(stored)),
		rings: maxSpiralRing,
	}
	for id, pos := range stored {
		p.all[id] = pos
		p.taken[pos]++
	}
	return p
}

// Get returns the position assigned to a machine.
func (p *Positions) Get(machineID string) (Position, bool) {
	pos, ok := p.all[machineID]
	return pos, ok
}

// GetOrSet returns the machine's position, allocating the next free cell of
// the spiral around the origin on first use. It reports false when the
// spiral has no free cell left and the machine was put on the origin.
func (p *Positions) GetOrSet(machineID string) (Position, bool) {
	if pos, ok := p.all[machineID]; ok {
		return pos, true
	}
	pos, ok := p.nextAvailable()
	p.all[machineID] = pos
	p.taken[pos]++
	return pos, ok
}

// Set records an explicit position for a machine. Moving onto an occupied
// cell is allowed; the cell is then shared.
func (p *Positions) Set(machineID string, pos Position) Position {
	if old, ok := p.all[machineID]; ok {
		if old == pos {
			return pos
		}
		p.release(old)
	}
	p.all[machineID] = pos
	p.taken[pos]++
	return pos
}

// Delete releases the cell held by a machine.
func (p *Positions) Delete(machineID string) {
	if old, ok := p.all[machineID]; ok {
		p.release(old)
		delete(p.all, machineID)
	}
}

func (p *Positions) release(pos Position) {
	if p.taken[pos] <= 1 {
		delete(p.taken, pos)
		return
	}
	p.taken[pos]--
}

// All returns a copy of every assigned position.
func (p *Positions) All() map[string]Position {
	out := make(map[string]Position, len(p.all))
	for id, pos := range p.all {
		out[id] = pos
	}
	return out
}

func (p *Positions) has(pos Position) bool {
	return p.taken[pos] > 0
}

// nextAvailable walks rings of growing size: right and down by layer, then
// left and up by layer+1. It falls back to the origin when every ring is
// full.
func (p *Positions) nextAvailable() (Position, bool) {
	x, z := 0, 0
	layer := 1
	for layer < p.rings {
		for i := 0; i < layer; i++ {
			if pos := (Position{x * gridSpacing, z * gridSpacing}); !p.has(pos) {
				return pos, true
			}
			x++
		}
		for i := 0; i < layer; i++ {
			if pos := (Position{x * gridSpacing, z * gridSpacing}); !p.has(pos) {
				return pos, true
			}
			z++
		}
		layer++
		for i := 0; i < layer; i++ {
			if pos := (Position{x * gridSpacing, z * gridSpacing}); !p.has(pos) {
				return pos, true
			}
			x--
		}
		for i := 0; i < layer; i++ {
			if pos := (Position{x * gridSpacing, z * gridSpacing}); !p.has(pos) {
				return pos, true
			}
			z--
		}
		layer++
	}
	return Position{0, 0}, false
}

// PositionBook holds the allocators of every clan.
type PositionBook map[string]*Positions

// NewPositionBook builds allocators from stored positions keyed by clan id.
func NewPositionBook(stored map[string]map[string]Position) PositionBook {
	book := make(PositionBook, len(stored))
	for clanID, positions := range stored {
		book[clanID] = NewPositions(positions)
	}
	return book
}

// For returns the allocator of a clan, creating it when missing.
func (b PositionBook) For(clanID string) *Positions {
	p, ok := b[clanID]
	if !ok {
		p = NewPositions(nil)
		b[clanID] = p
	}
	return p
}
