package utils

import (
	"crypto/rand"
	"hash/crc32"
)

// Base32Chars is the alphabet for human-readable codes. It drops I, O, S
// and Z so codes survive being read aloud or retyped.
const Base32Chars = "0123456789ABCDEFGHJKLMNPQRTUVWXY"

var base32BackHash = make(map[byte]int)

func init() {
	for i, c := range []byte(Base32Chars) {
		base32BackHash[c] = i
	}
}

// IsBase32 reports whether s only uses the Base32Chars alphabet
func IsBase32(s string) bool {
	for i := 0; i < len(s); i++ {
		if _, ok := base32BackHash[s[i]]; !ok {
			return false
		}
	}
	return true
}

// ToBase32 renders n in Base32Chars, most significant digit first
func ToBase32(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [13]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Base32Chars[n&31]
		n >>= 5
	}
	return string(buf[i:])
}

// RandomBase32 returns n random Base32Chars characters
func RandomBase32(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	for i := range buf {
		buf[i] = Base32Chars[buf[i]&31]
	}
	return string(buf)
}

// CRCFromString generates a 2-character CRC check value from string
func CRCFromString(value string) string {
	temp := crc32.ChecksumIEEE([]byte(value)) & 1023
	return string(Base32Chars[temp>>5]) + string(Base32Chars[temp&31])
}
