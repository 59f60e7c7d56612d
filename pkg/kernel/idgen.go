package kernel

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator mints fresh identifiers for aggregates. Implementations must
// produce globally unique, non-guessable values: at least 128 bits of
// entropy encoded as 32 or more characters.
type IDGenerator interface {
	Generate() string
}

// RandomIDGenerator produces URL-safe base64 identifiers from crypto/rand.
// The default 24 bytes of entropy encode to 32 characters.
type RandomIDGenerator struct {
	entropy int
}

// NewRandomIDGenerator creates a generator with entropy bytes of randomness.
// Values under 24 bytes are raised to 24 so the encoded identifier never
// falls below 32 characters.
func NewRandomIDGenerator(entropy int) *RandomIDGenerator {
	if entropy < 24 {
		entropy = 24
	}
	return &RandomIDGenerator{entropy: entropy}
}

func (g *RandomIDGenerator) Generate() string {
	buf := make([]byte, g.entropy)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy
		// source. Nothing sensible can be issued from here.
		panic(fmt.Sprintf("kernel: entropy source unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// UUIDGenerator produces RFC 4122 v4 identifiers. Suitable for row IDs that
// need uniqueness but not secrecy.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) Generate() string { return uuid.NewString() }

// SequentialIDGenerator hands out a deterministic sequence. Test helper.
type SequentialIDGenerator struct {
	prefix string
	next   int
}

func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

func (g *SequentialIDGenerator) Generate() string {
	g.next++
	return fmt.Sprintf("%s-%032d", g.prefix, g.next)
}
