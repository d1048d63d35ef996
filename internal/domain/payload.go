package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON encodes v with sorted object keys, literal non-ASCII
// characters and no HTML escaping. json.Number values are written verbatim.
func CanonicalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode json: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DecodeTweet decodes a stored payload, keeping numbers as json.Number
// so ids larger than 2^53 survive the round trip.
func DecodeTweet(data []byte) (Tweet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tweet Tweet
	if err := dec.Decode(&tweet); err != nil {
		return nil, fmt.Errorf("failed to decode tweet: %w", err)
	}
	if tweet == nil {
		return nil, fmt.Errorf("tweet payload is not an object")
	}
	return tweet, nil
}
