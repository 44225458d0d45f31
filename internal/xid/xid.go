// Package xid generates short prefixed identifiers for rows that have no
// natural key, such as cash movement records.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form prefix_<unixnano36><6 hex chars>. Ordering by
// id roughly follows creation time, which keeps ledger exports readable.
func New(prefix string) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s_%s%s",
		prefix,
		base36(time.Now().UnixNano()),
		hex.EncodeToString(buf),
	)
}

func base36(n int64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	var out []byte
	for n > 0 {
		out = append([]byte{digits[n%36]}, out...)
		n /= 36
	}
	return string(out)
}
