package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
	"github.com/honnyfrontend/joao-fotografo/internal/transport/http/dto"
	httperrors "github.com/honnyfrontend/joao-fotografo/internal/transport/http/errors"
)

const (
	uploadFormField      = "images"
	descriptionFormField = "batchDescription"

	// Room for ten full-size files plus multipart framing and the description field.
	maxUploadBodySize  = gallerysvc.MaxItemsPerBatch*gallerysvc.MaxItemSize + 1<<20
	uploadMemoryBuffer = 32 << 20
	maxJSONBodySize    = 64 << 10
	sniffLen           = 512
)

type GalleryHandler struct {
	service       *gallerysvc.Service
	logger        *zap.Logger
	exposeDetails bool
}

func NewGalleryHandler(service *gallerysvc.Service, logger *zap.Logger, exposeDetails bool) *GalleryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryHandler{service: service, logger: logger, exposeDetails: exposeDetails}
}

func (h *GalleryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
	if err := r.ParseMultipartForm(uploadMemoryBuffer); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
				Code:    "PAYLOAD_TOO_LARGE",
				Message: fmt.Sprintf("upload exceeds %d bytes", maxUploadBodySize),
			})
			return
		}
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File[uploadFormField]
	if len(headers) == 0 {
		writeBadRequest(w, "NO_FILES", "no files uploaded")
		return
	}
	if len(headers) > gallerysvc.MaxItemsPerBatch {
		httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
			Code:    "TOO_MANY_FILES",
			Message: fmt.Sprintf("at most %d files per upload", gallerysvc.MaxItemsPerBatch),
		})
		return
	}
	for _, header := range headers {
		if header.Size > gallerysvc.MaxItemSize {
			httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("%s exceeds the 5MB limit", header.Filename),
			})
			return
		}
	}

	intake, err := openUploadItems(headers)
	defer intake.close()
	if err != nil {
		h.writeError(w, err)
		return
	}
	rejected := intake.rejected
	if len(intake.items) == 0 {
		if intake.unsupported == len(headers) {
			httperrors.Write(w, http.StatusUnsupportedMediaType, httperrors.APIError{
				Code:    "UNSUPPORTED_MEDIA_TYPE",
				Message: "only JPEG, PNG and WEBP images are allowed",
			})
			return
		}
		httperrors.Write(w, http.StatusBadRequest, dto.UploadFailedResponse{
			Code:     "NO_USABLE_FILES",
			Message:  "every uploaded file was rejected",
			Failures: []dto.FileIssue{},
			Rejected: rejected,
		})
		return
	}

	result, err := h.service.SubmitBatch(r.Context(), intake.items, r.FormValue(descriptionFormField))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.SuccessCount == 0 {
		httperrors.Write(w, http.StatusInternalServerError, dto.UploadFailedResponse{
			Code:     "UPLOAD_FAILED",
			Message:  "no photo could be uploaded",
			Failures: dto.FromUploadFailures(result.Failures),
			Rejected: rejected,
		})
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.UploadResponse{
		Success:      true,
		Message:      fmt.Sprintf("%d photo(s) uploaded", result.SuccessCount),
		BatchID:      result.BatchID,
		SuccessCount: result.SuccessCount,
		Failures:     dto.FromUploadFailures(result.Failures),
		Rejected:     rejected,
	})
}

func (h *GalleryHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	views, err := h.service.ListBatches(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	batches := make([]dto.BatchResponse, 0, len(views))
	for _, view := range views {
		batches = append(batches, dto.FromBatchView(view))
	}

	httperrors.Write(w, http.StatusOK, dto.BatchesListResponse{Success: true, Batches: batches})
}

func (h *GalleryHandler) PatchPhoto(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	description, ok := decodeDescription(w, r)
	if !ok {
		return
	}

	photo, err := h.service.UpdatePhotoDescription(r.Context(), chi.URLParam(r, "id"), description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PhotoMutationResponse{
		Success: true,
		Message: "photo description updated",
		Photo:   dto.FromPhoto(photo),
	})
}

func (h *GalleryHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	if err := h.service.DeletePhoto(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteResponse{Success: true, Message: "photo deleted"})
}

func (h *GalleryHandler) AddPhotoComment(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	req, ok := decodeComment(w, r)
	if !ok {
		return
	}

	photo, err := h.service.AddPhotoComment(r.Context(), chi.URLParam(r, "id"), req.Author, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PhotoMutationResponse{
		Success: true,
		Message: "comment added",
		Photo:   dto.FromPhoto(photo),
	})
}

func (h *GalleryHandler) PatchBatchDescription(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	description, ok := decodeDescription(w, r)
	if !ok {
		return
	}

	batch, err := h.service.UpdateBatchDescription(r.Context(), chi.URLParam(r, "id"), description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BatchMutationResponse{
		Success: true,
		Message: "batch description updated",
		Batch:   dto.FromBatch(batch),
	})
}

func (h *GalleryHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	result, err := h.service.DeleteBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	message := "batch and all of its photos deleted"
	if len(result.FailedPhotoIDs) > 0 {
		message = fmt.Sprintf("batch deleted, %d photo(s) kept because their media could not be removed", len(result.FailedPhotoIDs))
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteBatchResponse{
		Success:       true,
		Message:       message,
		DeletedPhotos: result.DeletedPhotos,
		FailedPhotos:  result.FailedPhotoIDs,
	})
}

func (h *GalleryHandler) AddBatchComment(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	req, ok := decodeComment(w, r)
	if !ok {
		return
	}

	batch, err := h.service.AddBatchComment(r.Context(), chi.URLParam(r, "id"), req.Author, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BatchMutationResponse{
		Success: true,
		Message: "comment added",
		Batch:   dto.FromBatch(batch),
	})
}

func (h *GalleryHandler) available(w http.ResponseWriter) bool {
	if h.service == nil {
		writeInternal(w, "GALLERY_SERVICE_UNAVAILABLE", "gallery service is unavailable")
		return false
	}
	return true
}

func (h *GalleryHandler) writeError(w http.ResponseWriter, err error) {
	status, apiErr := galleryErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("gallery request failed", zap.Int("status", status), zap.String("code", apiErr.Code), zap.Error(err))
		if h.exposeDetails {
			apiErr.Details = err.Error()
		}
	}
	httperrors.Write(w, status, apiErr)
}

func galleryErrorResponse(err error) (int, httperrors.APIError) {
	switch {
	case errors.Is(err, gallerysvc.ErrInvalidID):
		return http.StatusBadRequest, httperrors.APIError{Code: "INVALID_ID", Message: "invalid id"}
	case errors.Is(err, gallerysvc.ErrNoItems):
		return http.StatusBadRequest, httperrors.APIError{Code: "NO_FILES", Message: "no files uploaded"}
	case errors.Is(err, gallerysvc.ErrValidation):
		return http.StatusBadRequest, httperrors.APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.Is(err, gallerysvc.ErrNotFound):
		return http.StatusNotFound, httperrors.APIError{Code: "NOT_FOUND", Message: "resource not found"}
	case errors.Is(err, gallerysvc.ErrTooManyItems):
		return http.StatusRequestEntityTooLarge, httperrors.APIError{Code: "TOO_MANY_FILES", Message: err.Error()}
	case errors.Is(err, gallerysvc.ErrItemTooLarge):
		return http.StatusRequestEntityTooLarge, httperrors.APIError{Code: "FILE_TOO_LARGE", Message: err.Error()}
	case errors.Is(err, gallerysvc.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, httperrors.APIError{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "only JPEG, PNG and WEBP images are allowed"}
	case errors.Is(err, gallerysvc.ErrMediaDelete):
		return http.StatusBadGateway, httperrors.APIError{Code: "MEDIA_DELETE_FAILED", Message: "media delete failed, metadata retained"}
	case errors.Is(err, gallerysvc.ErrBatchPersist):
		return http.StatusInternalServerError, httperrors.APIError{Code: "BATCH_PERSIST_FAILED", Message: "batch could not be saved"}
	default:
		return http.StatusInternalServerError, httperrors.APIError{Code: "INTERNAL_ERROR", Message: "internal server error"}
	}
}

type uploadIntake struct {
	items       []gallerysvc.UploadItem
	rejected    []dto.FileIssue
	unsupported int
	closers     []io.Closer
}

func (in uploadIntake) close() {
	for _, c := range in.closers {
		_ = c.Close()
	}
}

// openUploadItems opens every part and splits accepted images from rejected files.
// Empty and non-image parts are rejected individually. The intake must be closed
// by the caller even when err is not nil.
func openUploadItems(headers []*multipart.FileHeader) (uploadIntake, error) {
	intake := uploadIntake{
		items:    make([]gallerysvc.UploadItem, 0, len(headers)),
		rejected: make([]dto.FileIssue, 0),
		closers:  make([]io.Closer, 0, len(headers)),
	}

	for _, header := range headers {
		if header.Size <= 0 {
			intake.rejected = append(intake.rejected, dto.FileIssue{
				Filename: header.Filename,
				Reason:   "file is empty",
			})
			continue
		}

		file, err := header.Open()
		if err != nil {
			return intake, fmt.Errorf("open upload part %q: %w", header.Filename, err)
		}
		intake.closers = append(intake.closers, file)

		contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
		if contentType == "" || contentType == "application/octet-stream" {
			sniffed, err := sniffContentType(file)
			if err != nil {
				return intake, err
			}
			contentType = sniffed
		}

		normalized, ok := gallerysvc.AllowedContentType(contentType)
		if !ok {
			intake.unsupported++
			intake.rejected = append(intake.rejected, dto.FileIssue{
				Filename: header.Filename,
				Reason:   fmt.Sprintf("unsupported media type %q", contentType),
			})
			continue
		}

		intake.items = append(intake.items, gallerysvc.UploadItem{
			FileName:    header.Filename,
			ContentType: normalized,
			Size:        header.Size,
			Body:        file,
		})
	}

	return intake, nil
}

func sniffContentType(file multipart.File) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("sniff content type: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload part: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}

func decodeDescription(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req dto.DescriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid json body")
		return "", false
	}
	if req.Description == nil {
		writeBadRequest(w, "VALIDATION_ERROR", "description is required")
		return "", false
	}
	return *req.Description, true
}

func decodeComment(w http.ResponseWriter, r *http.Request) (dto.CommentRequest, bool) {
	var req dto.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid json body")
		return dto.CommentRequest{}, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "comment text is required")
		return dto.CommentRequest{}, false
	}
	return req, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
