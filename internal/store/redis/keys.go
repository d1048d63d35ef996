package redis

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// KeyPrefixLabel is the prefix for cached classification labels
	KeyPrefixLabel = "sortmark:label:"
)

// LabelKey returns the Redis key for the label of a canonical bookmark payload
// under a workflow namespace. Both are hashed so keys stay short whatever the
// tweet size, and a namespace change never reads labels written under another.
func LabelKey(namespace, canonicalPayload string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(canonicalPayload))
	return KeyPrefixLabel + hex.EncodeToString(h.Sum(nil))
}

// Namespace identifies the workflow that produced a label: its API key and
// the output and label keys the label was read from. The result is hashed
// into LabelKey, so the API key never reaches Redis in clear.
func Namespace(workflowKey, outputKey, labelKey string) string {
	return workflowKey + "\x00" + outputKey + "\x00" + labelKey
}
