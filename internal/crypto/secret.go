package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	OTPLength          = 6
	DefaultTokenLength = 32 // 256 bits
)

// SecretPair is a freshly generated secret. Plain goes to the user, Hash goes to storage.
type SecretPair struct {
	Plain string
	Hash  string
}

// GenerateOTP returns a numeric code of the given length drawn from crypto/rand.
func GenerateOTP(length int) (*SecretPair, error) {
	if length <= 0 {
		length = OTPLength
	}
	var sb strings.Builder
	ten := big.NewInt(10)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return nil, err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	code := sb.String()
	return &SecretPair{Plain: code, Hash: HashSecret(code)}, nil
}

// GenerateToken returns a hex encoded random token of byteLength bytes.
func GenerateToken(byteLength int) (*SecretPair, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenLength
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(b)
	return &SecretPair{Plain: token, Hash: HashSecret(token)}, nil
}

func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(secret)))
	return hex.EncodeToString(sum[:])
}

// MatchSecret compares a submitted secret against a stored hash in constant time.
func MatchSecret(submitted, storedHash string) bool {
	if submitted == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSecret(submitted)), []byte(storedHash)) == 1
}
