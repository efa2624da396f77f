// Package xid generates prefixed, sortable-ish identifiers for store
// entities. Not a ULID; uniqueness comes from nanosecond time plus random
// suffix, which is plenty for a single shop's write rates.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// CheckNumber is a short human-readable sale number printed on receipts.
func CheckNumber(t time.Time) string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("CHK-%s", t.Format("060102150405"))
	}
	return fmt.Sprintf("CHK-%s-%s", t.Format("060102"), hex.EncodeToString(buf))
}
