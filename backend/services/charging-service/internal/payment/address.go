package payment

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/sha3"
)

func keccak256(parts ...string) []byte {
	h := sha3.NewLegacyKeccak256()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(p))
	}
	return h.Sum(nil)
}

// RecipientAddress derives a stable 20-byte address for a station under a provider mode.
func RecipientAddress(mode Mode, stationID string) string {
	sum := keccak256(string(mode) + ":" + stationID)
	return "0x" + hex.EncodeToString(sum[12:])
}

func txHash(sessionID, nonce string, nanos int64) string {
	return "0x" + hex.EncodeToString(keccak256(sessionID, nonce, strconv.FormatInt(nanos, 10)))
}
