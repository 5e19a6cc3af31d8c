package testutil

import (
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
)

// DiscardLogger returns an slog.Logger that writes to io.Discard.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// HexToBytes converts a hex string (with or without 0x prefix) to bytes.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return hex.DecodeString(s)
}

// FeedID builds a deterministic feed id whose last byte is n.
func FeedID(n byte) [32]byte {
	var id [32]byte
	id[31] = n
	return id
}
