package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
	"github.com/MrSnakeDoc/sortmark/internal/utils"
)

const (
	uploadField     = "file"
	multipartMemory = 8 << 20
)

var errUploadTooLarge = errors.New("upload too large")

// formFile reads the "file" part of a multipart request of at most maxBytes.
// The caller must call cleanup once the file is no longer needed.
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, nil, fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, maxBytes)
		}
		return nil, nil, nil, fmt.Errorf("%w: expected multipart/form-data: %v", domain.ErrMalformedInput, err)
	}
	cleanup := func() {
		_ = r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("%w: missing %q file field", domain.ErrMalformedInput, uploadField)
	}
	return file, header, func() {
		utils.Close(file)
		cleanup()
	}, nil
}

func writeUploadError(w http.ResponseWriter, log logger.Logger, err error) {
	if errors.Is(err, errUploadTooLarge) {
		log.Warn("upload rejected", logger.Error(err))
		writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, log, err)
}
