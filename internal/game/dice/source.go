package dice

import (
	"crypto/rand"
	"math/big"
)

// secureSource draws from crypto/rand. Rolls decide rewards and
// penalties that persist to player records, so the production source is
// deliberately not seedable; tests script a Source instead.
type secureSource struct{}

// NewCryptoSource returns the crypto/rand-backed Source the server
// binary rolls with.
func NewCryptoSource() Source {
	return secureSource{}
}

// Intn implements Source.
//
// Precondition: n > 0; panics otherwise, matching math/rand.
func (secureSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand does not fail on supported platforms; a failure
		// here is unrecoverable, not a reason to degrade randomness.
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}
