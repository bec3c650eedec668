package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
)

// TestCryptoSource_Intn_InRange verifies the postcondition:
// every value returned by Intn(6) is in [0, 6).
func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

// TestCryptoSource_Intn_PanicsOnZero verifies the precondition:
// Intn panics when called with n <= 0.
func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(9000), b.Intn(9000))
	}
}

func TestSequenceSource_Cycles(t *testing.T) {
	src := dice.NewSequenceSource(1, 2, 3)
	got := []int{src.Intn(6), src.Intn(6), src.Intn(6), src.Intn(6)}
	assert.Equal(t, []int{1, 2, 3, 1}, got)
	assert.Equal(t, 4, src.Calls())
}

func TestSequenceSource_PanicsOutOfRange(t *testing.T) {
	src := dice.NewSequenceSource(6)
	assert.Panics(t, func() { src.Intn(6) })
}

func TestFaces_ProducesFaceValues(t *testing.T) {
	die := dice.NewDie(dice.Faces(6, 1, 4))
	assert.Equal(t, 6, die.Roll(6))
	assert.Equal(t, 1, die.Roll(6))
	assert.Equal(t, 4, die.Roll(6))
}

func TestLoggedRoller_Roll(t *testing.T) {
	r := dice.NewLoggedRoller(dice.Faces(3), zaptest.NewLogger(t))
	assert.Equal(t, 3, r.Roll(6))
	assert.Panics(t, func() { r.Roll(1) })
}

// Property: a die never produces a face outside [1, sides].
func TestDie_Roll_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sides := rapid.IntRange(2, 100).Draw(rt, "sides")
		seed := rapid.Uint64().Draw(rt, "seed")
		die := dice.NewDie(dice.NewSeededSource(seed))
		face := die.Roll(sides)
		if face < 1 || face > sides {
			rt.Fatalf("face %d outside [1, %d]", face, sides)
		}
	})
}
