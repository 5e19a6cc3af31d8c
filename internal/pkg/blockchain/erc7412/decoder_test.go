package erc7412

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/snx-sdk/internal/testutil"
)

var testOracle = common.HexToAddress("0x2222222222222222222222222222222222222222")

func TestDecodeOracleError(t *testing.T) {
	feeds := [][32]byte{testutil.FeedID(1), testutil.FeedID(2)}
	valid := testutil.PackOracleDataRequired(t, testOracle, 1, 3600, feeds)

	info, err := DecodeOracleError(valid)
	if err != nil {
		t.Fatalf("DecodeOracleError: %v", err)
	}
	if info.OracleAddress != testOracle {
		t.Errorf("OracleAddress = %s, want %s", info.OracleAddress.Hex(), testOracle.Hex())
	}
	if info.UpdateType != 1 {
		t.Errorf("UpdateType = %d, want 1", info.UpdateType)
	}
	if info.StalenessTolerance != 3600 {
		t.Errorf("StalenessTolerance = %d, want 3600", info.StalenessTolerance)
	}
	if len(info.FeedIDs) != 2 || info.FeedIDs[0] != feeds[0] || info.FeedIDs[1] != feeds[1] {
		t.Errorf("FeedIDs = %x, want %x", info.FeedIDs, feeds)
	}
}

func TestDecodeOracleError_ChecksummedAddress(t *testing.T) {
	lower := common.HexToAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
	info, err := DecodeOracleError(testutil.PackOracleDataRequired(t, lower, 1, 60, nil))
	if err != nil {
		t.Fatalf("DecodeOracleError: %v", err)
	}
	if got := info.OracleAddress.Hex(); got != "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045" {
		t.Errorf("Hex() = %s, want checksummed form", got)
	}
}

func TestDecodeOracleError_EmptyFeedsPassThrough(t *testing.T) {
	info, err := DecodeOracleError(testutil.PackOracleDataRequired(t, testOracle, 2, 0, nil))
	if err != nil {
		t.Fatalf("DecodeOracleError: %v", err)
	}
	if len(info.FeedIDs) != 0 {
		t.Errorf("FeedIDs = %x, want empty", info.FeedIDs)
	}
}

func TestDecodeOracleError_NotOracle(t *testing.T) {
	valid := testutil.PackOracleDataRequired(t, testOracle, 1, 60, [][32]byte{testutil.FeedID(1)})

	// Flip each bit of the selector in turn; every near miss is a non-oracle revert.
	for bit := 0; bit < 32; bit++ {
		data := append([]byte{}, valid...)
		data[bit/8] ^= 1 << (bit % 8)
		if _, err := DecodeOracleError(data); !errors.Is(err, ErrNotOracleDataRequired) {
			t.Fatalf("bit %d: err = %v, want ErrNotOracleDataRequired", bit, err)
		}
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: []byte{0xcf, 0x2c, 0xab}},
		{name: "Error(string)", data: testutil.PackErrorString(t, "insufficient margin")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeOracleError(tt.data); !errors.Is(err, ErrNotOracleDataRequired) {
				t.Errorf("err = %v, want ErrNotOracleDataRequired", err)
			}
		})
	}
}

func TestDecodeOracleError_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "selector only", data: OracleDataRequiredSelector[:]},
		{name: "truncated body", data: testutil.PackOracleDataRequired(t, testOracle, 1, 60, [][32]byte{testutil.FeedID(1)})[:40]},
		{name: "bad inner query", data: testutil.PackOracleDataRequiredRaw(t, testOracle, []byte{0x01, 0x02})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOracleError(tt.data)
			var malformed *MalformedOracleError
			if !errors.As(err, &malformed) {
				t.Fatalf("err = %v, want *MalformedOracleError", err)
			}
			if len(malformed.RevertData) != len(tt.data) {
				t.Errorf("RevertData length = %d, want %d", len(malformed.RevertData), len(tt.data))
			}
		})
	}
}
