package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/sortmark/internal/dify"
	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

const (
	// DefaultOutputKey is the workflow output carrying the JSON-encoded classification.
	DefaultOutputKey = "categorized_bookmark_json"
	// DefaultLabelKey is the key of the category inside that JSON ("classification item").
	DefaultLabelKey = "分類項目"
)

// ExtractLabel unwraps data.outputs[outputKey] (a string holding a JSON
// object) and returns its labelKey value.
func ExtractLabel(resp *dify.WorkflowResponse, outputKey, labelKey string) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: empty workflow response", domain.ErrUpstreamResponse)
	}
	if resp.Data.Status == "failed" {
		msg := "workflow failed"
		if resp.Data.Error != nil && *resp.Data.Error != "" {
			msg = *resp.Data.Error
		}
		return "", fmt.Errorf("%w: %s", domain.ErrUpstreamResponse, msg)
	}

	raw, ok := resp.Data.Outputs[outputKey]
	if !ok {
		return "", fmt.Errorf("%w: missing data.outputs.%s", domain.ErrUpstreamResponse, outputKey)
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return "", fmt.Errorf("%w: data.outputs.%s is not a string", domain.ErrUpstreamResponse, outputKey)
	}

	var inner map[string]any
	if err := json.Unmarshal([]byte(encoded), &inner); err != nil {
		return "", fmt.Errorf("%w: data.outputs.%s is not valid JSON: %v", domain.ErrUpstreamResponse, outputKey, err)
	}

	label, ok := inner[labelKey].(string)
	if !ok {
		return "", fmt.Errorf("%w: classification has no string %q", domain.ErrUpstreamResponse, labelKey)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("%w: classification %q is empty", domain.ErrUpstreamResponse, labelKey)
	}
	return label, nil
}
