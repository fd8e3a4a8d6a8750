// Package ton implements canonicalization of TON ledger account
// identifiers.  Accounts appear in the wild in two textual encodings:
// the raw form "workchain:hex" and the user-friendly form, a 48
// character base64 (or base64url) string packing a tag byte, the
// workchain, the 32 byte account and a CRC16 checksum.  Equality
// comparison on the textual forms is meaningless; both encodings must
// be decoded to the same binary identity first.
package ton

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is the canonical, comparable form of a ledger account.
// For a decodable input it is "<workchain>:<64 lowercase hex>".
// The zero value ("") is the distinguished empty address: it never
// equals a real account.  Inputs that decode under neither encoding
// map to a deterministic opaque form that cannot collide with a
// decoded address.
type Address string

// Empty reports whether the address is the distinguished empty value.
func (a Address) Empty() bool { return a == "" }

// user-friendly address tags.  The basic tag is either bounceable
// (0x11) or non-bounceable (0x51); the high bit marks testnet-only
// addresses.  All variants fold to the same account.
const (
	tagBounceable    = 0x11
	tagNonBounceable = 0x51
	tagTestnetFlag   = 0x80
)

// Normalize folds any textual encoding of a ledger account to its
// canonical Address.  It is a pure, total function: every input maps
// to some Address, and two encodings of the same account always map
// to the same one.
func Normalize(raw string) Address {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if wc, acct, ok := parseRaw(s); ok {
		return canonical(wc, acct)
	}
	if wc, acct, ok := parseFriendly(s); ok {
		return canonical(wc, acct)
	}
	// Undecodable input.  The "#" prefix keeps the result disjoint
	// from every canonical form, which always starts with a digit or
	// a minus sign.
	return Address("#" + strings.ToLower(s))
}

func canonical(wc int32, acct []byte) Address {
	return Address(fmt.Sprintf("%d:%s", wc, hex.EncodeToString(acct)))
}

// parseRaw decodes the "workchain:hex" form.  The hex part must be
// exactly 32 bytes; the workchain is a small signed integer (0 for
// the basechain, -1 for the masterchain).
func parseRaw(s string) (int32, []byte, bool) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return 0, nil, false
	}
	wc, err := strconv.ParseInt(s[:idx], 10, 32)
	if err != nil {
		return 0, nil, false
	}
	acct, err := hex.DecodeString(strings.ToLower(s[idx+1:]))
	if err != nil || len(acct) != 32 {
		return 0, nil, false
	}
	return int32(wc), acct, true
}

// parseFriendly decodes the user-friendly form: 48 characters of
// base64 or base64url covering 36 bytes laid out as
// [tag][workchain][account x32][crc16 x2].  The checksum must match
// and the tag must be one of the known values, otherwise the input is
// not treated as a user-friendly address.
func parseFriendly(s string) (int32, []byte, bool) {
	if len(s) != 48 {
		return 0, nil, false
	}
	buf, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		buf, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return 0, nil, false
		}
	}
	if len(buf) != 36 {
		return 0, nil, false
	}
	tag := buf[0] &^ tagTestnetFlag
	if tag != tagBounceable && tag != tagNonBounceable {
		return 0, nil, false
	}
	want := uint16(buf[34])<<8 | uint16(buf[35])
	if crc16(buf[:34]) != want {
		return 0, nil, false
	}
	return int32(int8(buf[1])), buf[2:34], true
}

// crc16 computes the CRC16/XMODEM checksum (polynomial 0x1021, zero
// initial value) used by the user-friendly address encoding.
func crc16(data []byte) uint16 {
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
