package ledger

import (
	"crypto/rand"
	"io"
	"strings"
)

// ReferralCodeLength is the length of generated referral codes.
const ReferralCodeLength = 8

// Excludes 0/O and 1/I/L so codes survive being read aloud or retyped.
const referralAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// unbiasedLimit is the largest multiple of len(referralAlphabet) a byte can
// hold. Bytes at or above it are discarded so every symbol is equally likely.
const unbiasedLimit = 256 - 256%len(referralAlphabet)

// NewReferralCode returns a random referral code. Uniqueness is enforced by
// the store; callers retry on collision.
func NewReferralCode() string {
	code, err := readReferralCode(rand.Reader)
	if err != nil {
		panic("ledger: crypto/rand unavailable: " + err.Error())
	}
	return code
}

func readReferralCode(r io.Reader) (string, error) {
	code := make([]byte, 0, ReferralCodeLength)
	buf := make([]byte, ReferralCodeLength)
	for len(code) < ReferralCodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= unbiasedLimit {
				continue
			}
			code = append(code, referralAlphabet[int(b)%len(referralAlphabet)])
			if len(code) == ReferralCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// NormalizeReferralCode trims and upper-cases a code typed by a customer.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
