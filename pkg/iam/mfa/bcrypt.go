package mfa

import (
	"golang.org/x/crypto/bcrypt"
)

// MethodSecret is the built-in shared-secret auth method, registered by the
// composition root under this name.
const MethodSecret = "secret"

// BcryptFactorVerifier implements iam.FactorVerifier with bcrypt: Enroll
// stores a hash, never the raw factor; Verify does a constant-time compare.
type BcryptFactorVerifier struct {
	cost int
}

func NewBcryptFactorVerifier(cost int) *BcryptFactorVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptFactorVerifier{cost: cost}
}

func (v *BcryptFactorVerifier) Enroll(factor string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(factor), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (v *BcryptFactorVerifier) Verify(stored, submitted string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(submitted)) == nil
}
