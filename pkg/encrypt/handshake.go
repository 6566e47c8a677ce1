package encrypt

import "math/rand"

// Bounds of the swap multiples a server hands out during the handshake.
const (
	MinSwapMultiple = 6
	MaxSwapMultiple = 12
)

// ServerVerificationHash answers the challenge a client sends in its init
// packet. Clients compare the answer to decide whether the server is
// genuine.
func ServerVerificationHash(challenge int) int {
	c := challenge + 1
	return 110905 +
		(c%9+1)*((11092004-c)%((c%11+1)*119))*119 +
		c%2004
}

// GenerateSwapMultiple returns a random multiple in
// [MinSwapMultiple, MaxSwapMultiple].
func GenerateSwapMultiple() int {
	return MinSwapMultiple + rand.Intn(MaxSwapMultiple-MinSwapMultiple+1)
}
