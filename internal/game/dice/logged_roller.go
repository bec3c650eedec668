package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with sides and face value.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll draws a face in [1, sides] and logs it at debug level.
//
// Precondition: sides >= 2.
// Postcondition: 1 <= result <= sides.
func (r *Roller) Roll(sides int) int {
	if sides < 2 {
		panic("dice: Roll called with sides < 2")
	}
	face := r.src.Intn(sides) + 1
	r.logger.Debug("dice roll",
		zap.Int("sides", sides),
		zap.Int("face", face),
	)
	return face
}
