package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	signIDPrefix = "sr_"
	signIDLength = 16
	signIDChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateSignID returns an unguessable signature request identifier.
// The token doubles as the capability securing the signing link, so it
// must come from crypto/rand.
func GenerateSignID() string {
	chars := []byte(signIDChars)
	id := make([]byte, signIDLength)
	for i := range id {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		id[i] = chars[n.Int64()]
	}
	return signIDPrefix + string(id)
}

// GenerateVerificationCode returns a uniform random 6-digit code
// in the range 100000-999999.
func GenerateVerificationCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(900000))
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskPhone hides the middle block of a 010-XXXX-XXXX number for logs.
func MaskPhone(phone string) string {
	if len(phone) != 13 {
		return "***"
	}
	return phone[:4] + "****" + phone[8:]
}

func MaskCode(code string) string {
	if len(code) <= 2 {
		return "******"
	}
	return code[:2] + "****"
}
