package provider

import (
	"encoding/json"
	"time"
)

// SyntheticCursor is the emulated cursor shape for providers without a
// native one (§4.2: "newest external_id + last timestamp seen"). The engine
// never inspects its contents — only the adapter that produced it does — so
// it is an opaque string on the wire, JSON underneath for adapter-internal
// convenience.
type SyntheticCursor struct {
	LastExternalID string    `json:"last_external_id"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

func EncodeSyntheticCursor(c SyntheticCursor) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}

	return string(b)
}

// DecodeSyntheticCursor returns the zero value for an empty or malformed
// cursor — treated the same as "never synced" (§4.4.2: cursor nil means
// never synced).
func DecodeSyntheticCursor(raw string) SyntheticCursor {
	var c SyntheticCursor
	if raw == "" {
		return c
	}

	_ = json.Unmarshal([]byte(raw), &c)

	return c
}
