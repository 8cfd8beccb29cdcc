package auth

import "golang.org/x/crypto/bcrypt"

// HashAPIKey хэширует API-ключ с использованием bcrypt.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CompareAPIKey сравнивает bcrypt-хэш с ключом.
func CompareAPIKey(hash, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}
