package sequence

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/eolink-project/eolink/pkg/data"
)

// InitStart combines the init reply pair into a start value.
func InitStart(s1, s2 int) int {
	return s1*7 + s2 - 13
}

// PingStart combines a ping pair into a start value.
func PingStart(s1, s2 int) int {
	return s1 - s2
}

// GenerateStart picks a random start value for a new connection. It is
// small enough that start plus any counter value fits one byte.
func GenerateStart() int {
	return rand.Intn(data.CharMax - 9)
}

// MaxInitStart is the largest start an init reply can carry: every value
// of the sequence must still fit a char.
const MaxInitStart = data.CharMax - Modulus

// ErrStartRange is returned by InitBytes for a start outside 0..MaxInitStart.
var ErrStartRange = errors.New("sequence: start outside init range")

// InitBytes splits start into a pair for the init reply. Both values fit
// a char and InitStart recovers start.
func InitBytes(start int) (s1, s2 int, err error) {
	if start < 0 || start > MaxInitStart {
		return 0, 0, fmt.Errorf("%w: %d not in 0..%d", ErrStartRange, start, MaxInitStart)
	}
	lo := max(0, (start-(data.CharMax-1)+13+6)/7)
	hi := (start + 13) / 7
	s1 = lo + rand.Intn(hi-lo+1)
	s2 = start - s1*7 + 13
	return s1, s2, nil
}

// PingBytes splits start into a pair for a connection ping. PingStart
// recovers start.
func PingBytes(start int) (s1, s2 int) {
	s1 = start + rand.Intn(data.CharMax)
	s2 = s1 - start
	return s1, s2
}
