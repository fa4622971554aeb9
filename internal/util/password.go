package util

import "golang.org/x/crypto/bcrypt"

// Cost tuned for an interactive register/login path.
const bcryptCost = 8

// HashPassword derives the stored bcrypt digest for a plaintext credential.
func HashPassword(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// CheckPassword reports whether plain matches the stored digest.
func CheckPassword(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
