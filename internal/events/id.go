package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// ComputeID derives a deterministic content-hash ID for a locally ingested
// record, mirroring the attested prior implementation's RawEvent.compute_id:
// sha256 over source|type|timestamp|canonical(data)|cwd|session_id,
// truncated to the first 32 hex characters. Timestamp is passed pre-
// formatted so callers control precision/format, matching how the ingress
// layer receives it off the wire before parsing.
func ComputeID(source string, typ Type, timestampRFC3339 string, data map[string]any, cwd, sessionID *string) string {
	canonical, _ := json.Marshal(sortedData(data))
	content := source + "|" + string(typ) + "|" + timestampRFC3339 + "|" + string(canonical) + "|" + derefOr(cwd, "") + "|" + derefOr(sessionID, "")
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:32]
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// sortedData returns a copy of data as a plain map (an empty map for nil).
// The sorted key order in the hashed JSON comes from encoding/json, which
// writes map[string]any keys in sorted order on marshal.
func sortedData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(data))
	for _, k := range keys {
		out[k] = data[k]
	}
	return out
}
