package utils

import (
	"crypto/rand"
	"math/big"
)

// GenerateSecureOTP returns a numeric code of the given length. The first digit is never
// zero, so a 6-digit code always lies in [100000, 999999].
func GenerateSecureOTP(length int) (string, error) {
	const otpChars = "0123456789"
	buffer := make([]byte, length)
	for i := 0; i < length; i++ {
		lo, span := int64(0), int64(len(otpChars))
		if i == 0 {
			lo, span = 1, span-1
		}
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", err
		}
		buffer[i] = otpChars[lo+n.Int64()]
	}

	return string(buffer), nil
}
