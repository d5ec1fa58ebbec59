// Package primes provides the ascending prime sequence used to seed
// generated scenarios.
//
// Only a handful of values are drawn per generation pass, so primality
// is decided by plain trial division with no sieve or memoization.
package primes

// DefaultStart is the floor used when a Sequence is built with a start
// below 2.
const DefaultStart = 2

// IsPrime reports whether n is prime by trial division with odd numbers
// up to the integer square root of n.
func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := 3; i <= n/i; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// Sequence is a cursor over ascending primes. The first value returned
// is the smallest prime greater than or equal to the start value.
//
// A Sequence is not safe for concurrent use. It can only be restarted by
// constructing a new one.
type Sequence struct {
	cursor int
}

// NewSequence returns a Sequence starting at start. Values below 2 fall
// back to DefaultStart.
func NewSequence(start int) *Sequence {
	if start < DefaultStart {
		start = DefaultStart
	}
	return &Sequence{cursor: start}
}

// Next returns the next prime and advances the cursor past it.
func (s *Sequence) Next() int {
	for !IsPrime(s.cursor) {
		s.cursor++
	}
	p := s.cursor
	s.cursor++
	return p
}
