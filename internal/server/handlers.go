package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/common"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// multipart parts beyond this stay on disk until read.
const maxFormMemory = 32 << 20

type healthLimits struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
}

type healthResponse struct {
	Status              string       `json:"status"`
	RateLimiting        string       `json:"rate_limiting"`
	MaxImagesPerRequest int          `json:"max_images_per_request"`
	MaxFileSizeBytes    int64        `json:"max_file_size_bytes"`
	Limits              healthLimits `json:"limits"`
	CacheBackend        string       `json:"cache_backend,omitempty"`
	Engine              string       `json:"ocr_engine,omitempty"`
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "OCR API - POST to " + constants.ExtractTextPath,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	limits := s.processor.Limits()
	resp := healthResponse{
		Status:              "healthy",
		RateLimiting:        "disabled",
		MaxImagesPerRequest: limits.MaxImages,
		MaxFileSizeBytes:    limits.MaxFileBytes,
		CacheBackend:        s.opts.CacheBackend,
		Engine:              s.opts.Engine,
	}
	if s.limiter != nil && len(s.limiter.Rules()) > 0 {
		resp.RateLimiting = "active"
		for _, r := range s.limiter.Rules() {
			switch r.Label {
			case "minute":
				resp.Limits.Minute = r.Limit
			case "hour":
				resp.Limits.Hour = r.Limit
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFromContext(r.Context(), s.logger)
	limits := s.processor.Limits()

	body := limits.MaxFileBytes*int64(limits.MaxImages) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, body)

	headers, err := uploadedFiles(r)
	if err != nil {
		s.reject(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	items := make([]entity.ImageItem, len(headers))
	for i, fh := range headers {
		items[i] = entity.ImageItem{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		}
	}
	if err := common.ValidateBatch(items, limits); err != nil {
		s.reject(w, r, err)
		return
	}
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			s.reject(w, r, common.NewAppError(common.CodeBadRequest,
				fmt.Sprintf("Could not read file %s", fh.Filename), errors.Join(common.ErrInvalidInput, err)))
			return
		}
		items[i].Data = data
	}
	for _, it := range items {
		logger.Info("image uploaded", "file", it.Filename, "bytes", len(it.Data))
	}

	ctx := r.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}
	res := s.processor.Process(ctx, items)
	writeJSON(w, http.StatusOK, res)
}

// uploadedFiles parses the multipart body and returns the Images parts in
// arrival order.
func uploadedFiles(r *http.Request) ([]*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, common.NewAppError(common.CodeBatchTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooBig.Limit), common.ErrTooLarge)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, common.NewAppError(common.CodeBadRequest,
				"Request must be multipart/form-data", common.ErrInvalidInput)
		}
		return nil, common.NewAppError(common.CodeBadRequest, "Malformed multipart body",
			errors.Join(common.ErrInvalidInput, err))
	}
	return r.MultipartForm.File[constants.UploadFieldName], nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	code := common.ErrorCode(err)
	logger := common.LoggerFromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "code", code, "error", err)
	}
	s.metrics.Rejected(code)
	writeDetail(w, status, common.PublicMessage(err))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"detail":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
