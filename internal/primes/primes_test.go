package primes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrime(t *testing.T) {
	tests := []struct {
		n    int
		want bool
	}{
		{-7, false},
		{0, false},
		{1, false},
		{2, true},
		{3, true},
		{4, false},
		{9, false},
		{25, false},
		{29, true},
		{49, false},
		{1009, true},
		{1011, false},
		{7919, true},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, IsPrime(tt.n), "IsPrime(%d)", tt.n)
	}
}

func TestSequence_DefaultStart(t *testing.T) {
	seq := NewSequence(0)
	got := make([]int, 0, 8)
	for range 8 {
		got = append(got, seq.Next())
	}
	assert.Equal(t, []int{2, 3, 5, 7, 11, 13, 17, 19}, got)
}

func TestSequence_StartsAboveFloor(t *testing.T) {
	seq := NewSequence(1000)
	assert.Equal(t, 1009, seq.Next())
	assert.Equal(t, 1013, seq.Next())
	assert.Equal(t, 1019, seq.Next())
}

func TestSequence_StartOnPrimeIsIncluded(t *testing.T) {
	seq := NewSequence(1009)
	assert.Equal(t, 1009, seq.Next())
	assert.Equal(t, 1013, seq.Next())
}

func TestSequence_StrictlyAscending(t *testing.T) {
	seq := NewSequence(1000)
	prev := 1000
	for range 50 {
		p := seq.Next()
		require.Greater(t, p, prev)
		require.True(t, IsPrime(p), "%d is not prime", p)
		prev = p
	}
}

func TestSequence_IndependentCursors(t *testing.T) {
	a := NewSequence(1000)
	b := NewSequence(1000)
	a.Next()
	a.Next()
	assert.Equal(t, 1009, b.Next(), "a fresh sequence must not share state")
}
