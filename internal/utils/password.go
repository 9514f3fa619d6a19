package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword derives the stored credential form from a raw password.
// bcrypt salts internally, so equal passwords hash differently and the
// raw value is never recoverable from the users table.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// A malformed hash simply fails to verify.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
