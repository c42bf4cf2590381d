package service

import (
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// decoyPasswordHash is a bcrypt hash of a throwaway value. Login attempts
// against unknown identifiers are checked against it so the CPU cost of the
// not-found path matches the wrong-password path.
const decoyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// CredentialValidator verifies presented passwords against stored hashes. It
// reports success or failure only; it never distinguishes "no such user"
// from "wrong password".
type CredentialValidator struct{}

func NewCredentialValidator() *CredentialValidator {
	return &CredentialValidator{}
}

func (v *CredentialValidator) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (v *CredentialValidator) Verify(storedHash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// DecoyCheck burns a bcrypt comparison against a fixed hash. The result is
// discarded; the point is that the caller's timing profile matches a real
// verification.
func (v *CredentialValidator) DecoyCheck(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(decoyPasswordHash), []byte(password))
}
