package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// hasher produces keyed BLAKE2b-256 digests so a leaked table cannot be brute
// forced offline without the pepper.
type hasher struct {
	key []byte
}

func newHasher(pepper string) (*hasher, error) {
	if pepper == "" {
		return nil, fmt.Errorf("otp pepper required")
	}
	key := blake2b.Sum256([]byte(pepper))
	return &hasher{key: key[:]}, nil
}

func (h *hasher) hash(bookingID uuid.UUID, purpose enums.OtpPurpose, code string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Only reachable with a key longer than 64 bytes.
		panic(err)
	}
	mac.Write([]byte(bookingID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *hasher) matches(stored string, bookingID uuid.UUID, purpose enums.OtpPurpose, code string) bool {
	computed := h.hash(bookingID, purpose, code)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) == 1
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func validFormat(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
