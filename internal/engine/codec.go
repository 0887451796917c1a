package engine

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/banktrail/ingestor/pkg/model"
)

// encodeRawTransaction/decodeRawTransaction round-trip one adapter
// RawTransaction through the staging table's opaque raw_data column, mirrors
// rawtransaction.Repository's own msgpack use so a staged row decodes back to
// exactly what the adapter returned (§8 property 5).
func encodeRawTransaction(tx model.RawTransaction) ([]byte, error) {
	return msgpack.Marshal(tx)
}

func decodeRawTransaction(raw []byte) (model.RawTransaction, error) {
	var tx model.RawTransaction

	err := msgpack.Unmarshal(raw, &tx)

	return tx, err
}

// decodeAccountCursors/encodeAccountCursors hold one synthetic-or-native
// cursor per external account id, for providers without connection-level
// pagination (§4.4.4): the single opaque ProviderSyncCursor.Cursor string
// becomes a JSON map instead of one scalar value.
func decodeAccountCursors(raw *string) map[string]string {
	out := map[string]string{}
	if raw == nil || *raw == "" {
		return out
	}

	_ = json.Unmarshal([]byte(*raw), &out)

	return out
}

func encodeAccountCursors(cursors map[string]string) string {
	b, err := json.Marshal(cursors)
	if err != nil {
		return ""
	}

	return string(b)
}
