package storage

import "golang.org/x/crypto/bcrypt"

// HashPin hashes a keypad PIN for storage in User.PinHash.
func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPin reports whether pin matches the bcrypt hash stored on the
// user record. A user with no PinHash set never verifies.
func VerifyPin(u User, pin string) bool {
	if u.PinHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PinHash), []byte(pin)) == nil
}
