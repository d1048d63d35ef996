package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

// BookmarksOutputKey is the csv-to-json workflow output holding the bookmark list.
const BookmarksOutputKey = "bookmarks_json"

// UploadedFile is the metadata returned by /files/upload.
type UploadedFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
}

// UploadFile uploads a document for later use as a workflow input.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, r io.Reader) (*UploadedFile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if contentType == "" {
		contentType = "text/csv"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(name)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", domain.ErrRemoteService, err)
	}
	if err := mw.WriteField("user", c.user); err != nil {
		return nil, fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: build upload: %v", domain.ErrRemoteService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: build upload request: %v", domain.ErrRemoteService, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.csvKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadedFile
	if err := c.do(req, &out, http.StatusCreated, http.StatusOK); err != nil {
		return nil, fmt.Errorf("file upload: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: file upload: response has no id", domain.ErrRemoteService)
	}
	return &out, nil
}

// ConvertCSV uploads an X bookmark CSV export and returns the bookmark
// objects produced by the csv-to-json workflow.
func (c *Client) ConvertCSV(ctx context.Context, name, contentType string, r io.Reader) ([]domain.Tweet, error) {
	file, err := c.UploadFile(ctx, name, contentType, r)
	if err != nil {
		return nil, err
	}

	resp, err := c.RunCSVToJSON(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	return bookmarksFromOutputs(resp)
}

// bookmarksFromOutputs accepts either a JSON array or a string holding one.
func bookmarksFromOutputs(resp *WorkflowResponse) ([]domain.Tweet, error) {
	if resp.Data.Status == "failed" {
		msg := "workflow failed"
		if resp.Data.Error != nil {
			msg = *resp.Data.Error
		}
		return nil, fmt.Errorf("%w: csv to json: %s", domain.ErrUpstreamResponse, msg)
	}

	raw, ok := resp.Data.Outputs[BookmarksOutputKey]
	if !ok {
		return nil, fmt.Errorf("%w: csv to json: missing output %q", domain.ErrUpstreamResponse, BookmarksOutputKey)
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tweets []domain.Tweet
	if err := dec.Decode(&tweets); err != nil {
		return nil, fmt.Errorf("%w: csv to json: output is not a list of objects: %v", domain.ErrUpstreamResponse, err)
	}
	if tweets == nil {
		tweets = []domain.Tweet{}
	}
	return tweets, nil
}
