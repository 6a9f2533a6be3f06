package ballot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderingIsLexicographic(t *testing.T) {
	low := Ballot{N: 1, Priority: 1, Pid: 5}
	higherN := Ballot{N: 2, Priority: 1, Pid: 1}
	samePriorityHigherPid := Ballot{N: 1, Priority: 1, Pid: 9}
	higherPriority := Ballot{N: 1, Priority: 2, Pid: 1}

	assert.True(t, low.Less(higherN))
	assert.True(t, higherN.Greater(low))
	assert.True(t, low.Less(samePriorityHigherPid))
	assert.True(t, low.Less(higherPriority))
	assert.True(t, low.GreaterOrEqual(low))
	assert.True(t, low.Equal(Ballot{N: 1, Priority: 1, Pid: 5}))
}

func TestZeroBallotIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, (Ballot{N: 1}).IsZero())
}
