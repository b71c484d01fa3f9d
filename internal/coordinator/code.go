package coordinator

import (
	"crypto/rand"
	"math/big"
)

// GenerateCode returns a 6-char join code. Codes only need to be unique among
// live rooms; callers check the store and regenerate on collision.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
