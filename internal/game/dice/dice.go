// Package dice provides the randomness abstraction used by the game state
// machines and room code generation.
package dice

// Source is the randomness provider for dice rolls and room codes.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Die rolls a single die.
type Die interface {
	// Roll returns a face value in [1, sides].
	//
	// Precondition: sides >= 2.
	Roll(sides int) int
}

// plainDie implements Die directly on top of a Source.
type plainDie struct {
	src Source
}

// NewDie returns a Die that draws faces from src without logging.
//
// Precondition: src must be non-nil.
func NewDie(src Source) Die {
	return &plainDie{src: src}
}

// Roll returns src.Intn(sides) + 1.
//
// Postcondition: 1 <= result <= sides.
func (d *plainDie) Roll(sides int) int {
	if sides < 2 {
		panic("dice: Roll called with sides < 2")
	}
	return d.src.Intn(sides) + 1
}
