package ton

import (
	"encoding/base64"
	"strings"
)

// bounceableFlagMask is the bit distinguishing TON's two user-friendly
// address tags: 0x11 (bounceable, "EQ...") vs 0x51 (non-bounceable,
// "UQ..."). Both encode the same (workchain, hash) pair; only the flag and
// the checksum that covers it differ.
const bounceableFlagMask = 0x40

// CanonicalForms implements chainadapter.Canonicalizer. TON wallets are
// addressed interchangeably by their bounceable ("EQ...") and
// non-bounceable ("UQ...") user-friendly encodings of the same underlying
// workchain+hash; matching must treat them as equal while the adapter still
// reports whichever form actually appeared on-chain in TxsAt's output.
func (a *Adapter) CanonicalForms(addr, token string) []string {
	forms := []string{addr}
	if flipped, ok := flipBounceableFlag(addr); ok {
		forms = append(forms, flipped)
	}
	return forms
}

// flipBounceableFlag decodes a TON user-friendly address (36 raw bytes:
// 1 tag + 1 workchain + 32 hash + 2 crc16), toggles the bounceable bit, and
// re-encodes with a freshly computed checksum. Returns ok=false for any
// string that isn't a well-formed user-friendly address (e.g. raw
// "workchain:hash" form), leaving matching to fall back to the literal
// address alone.
func flipBounceableFlag(addr string) (string, bool) {
	urlSafe := strings.ContainsAny(addr, "-_")
	enc := base64.StdEncoding
	if urlSafe {
		enc = base64.URLEncoding
	}

	raw, err := enc.DecodeString(addr)
	if err != nil || len(raw) != 36 {
		return "", false
	}

	flipped := make([]byte, 36)
	copy(flipped, raw)
	flipped[0] ^= bounceableFlagMask

	sum := crc16XModem(flipped[:34])
	flipped[34] = byte(sum >> 8)
	flipped[35] = byte(sum)

	if urlSafe {
		return base64.URLEncoding.EncodeToString(flipped), true
	}
	return base64.StdEncoding.EncodeToString(flipped), true
}

// crc16XModem computes CRC-16/XMODEM (poly 0x1021, init 0), the checksum
// TON's user-friendly address encoding uses.
func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
