package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ID prefixes. "loc" marks a terminal-local order ID that the central store
// has not confirmed yet; the sync engine swaps it for the server ID.
const (
	IDPrefixEntry      = "ent"
	IDPrefixLocalOrder = "loc"
	IDPrefixItem       = "itm"
)

// NewID returns "<prefix>_<unix>_<hex8>". Random suffix keeps IDs unique
// across a terminal restart within the same second.
func NewID(prefix string) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; fall back to time only.
		return fmt.Sprintf("%s_%010d_%08x", prefix, time.Now().Unix(), time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("%s_%010d_%s", prefix, time.Now().Unix(), hex.EncodeToString(b))
}

// IsLocalOrderID reports whether id was assigned by this terminal rather
// than by the central store.
func IsLocalOrderID(id string) bool {
	return len(id) > 4 && id[:4] == IDPrefixLocalOrder+"_"
}
