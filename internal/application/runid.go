package application

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// NewRunID returns "<unix ms>-<16 hex chars>". The random suffix makes ids
// generated in the same millisecond distinct without a central sequence.
func NewRunID() string {
	return newRunIDAt(time.Now())
}

func newRunIDAt(t time.Time) string {
	var suffix [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(suffix[:])
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + hex.EncodeToString(suffix[:])
}
