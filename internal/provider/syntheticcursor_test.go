package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticCursor_RoundTripsThroughEncodeDecode(t *testing.T) {
	seenAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := SyntheticCursor{LastExternalID: "tx-123", LastSeenAt: seenAt}

	encoded := EncodeSyntheticCursor(c)
	require.NotEmpty(t, encoded)

	decoded := DecodeSyntheticCursor(encoded)
	assert.Equal(t, c.LastExternalID, decoded.LastExternalID)
	assert.True(t, c.LastSeenAt.Equal(decoded.LastSeenAt))
}

func TestDecodeSyntheticCursor_EmptyString_ReturnsZeroValue(t *testing.T) {
	decoded := DecodeSyntheticCursor("")
	assert.Equal(t, SyntheticCursor{}, decoded)
}

func TestDecodeSyntheticCursor_Malformed_ReturnsZeroValue(t *testing.T) {
	decoded := DecodeSyntheticCursor("{not json")
	assert.Equal(t, SyntheticCursor{}, decoded)
}
