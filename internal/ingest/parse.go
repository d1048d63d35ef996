package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

// ParseBatch decodes an uploaded export: UTF-8 text holding a JSON array of objects.
// Numbers are kept as json.Number so tweet ids keep every digit.
func ParseBatch(raw []byte) ([]domain.Tweet, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: file is not valid UTF-8", domain.ErrMalformedInput)
	}

	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")) // BOM
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", domain.ErrMalformedInput, err)
	}
	// Anything but whitespace after the array, including a stray ']' or '}', is rejected.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON array", domain.ErrMalformedInput)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a JSON array, got null", domain.ErrMalformedInput)
	}

	tweets := make([]domain.Tweet, 0, len(items))
	for i, item := range items {
		tweet, err := domain.DecodeTweet(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d is not a JSON object", domain.ErrMalformedInput, i+1)
		}
		tweets = append(tweets, tweet)
	}
	return tweets, nil
}
