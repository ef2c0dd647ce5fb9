package sealing

import (
	"strings"
	"time"

	"github.com/xelth-com/sealflow/internal/utils"
)

// NewVerificationCode builds PREFIX-XXXX-<time>-<random><crc>. XXXX is the
// head of the application id, time is milliseconds in Base32Chars and the
// trailing two characters are a CRC over everything before them.
func NewVerificationCode(prefix, applicationID string, now time.Time) string {
	head := strings.ToUpper(strings.ReplaceAll(applicationID, "-", ""))
	if len(head) > 4 {
		head = head[:4]
	}
	for len(head) < 4 {
		head += "0"
	}

	body := strings.ToUpper(prefix) + "-" + head + "-" +
		utils.ToBase32(uint64(now.UnixMilli())) + "-" + utils.RandomBase32(6)
	return body + utils.CRCFromString(body)
}

// ValidCode checks the shape and CRC of a verification code. It says
// nothing about whether the code was ever issued.
func ValidCode(code string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	if len(parts[1]) != 4 || len(parts[3]) < 3 {
		return false
	}
	if !utils.IsBase32(parts[2]) || !utils.IsBase32(parts[3]) {
		return false
	}
	body, crc := code[:len(code)-2], code[len(code)-2:]
	return utils.CRCFromString(body) == crc
}
