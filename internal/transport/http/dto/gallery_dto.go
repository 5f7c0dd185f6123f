package dto

import (
	"time"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

type FileIssue struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type UploadResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	BatchID      string      `json:"batchId,omitempty"`
	SuccessCount int         `json:"successCount"`
	Failures     []FileIssue `json:"failures"`
	Rejected     []FileIssue `json:"rejected"`
}

// UploadFailedResponse is returned with 500 when no file of the call was stored.
type UploadFailedResponse struct {
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Failures []FileIssue `json:"failures"`
	Rejected []FileIssue `json:"rejected"`
}

type CommentResponse struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type PhotoResponse struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	MediaKey    string            `json:"mediaKey"`
	Description string            `json:"description"`
	Comments    []CommentResponse `json:"comments"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type BatchResponse struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	PhotoIDs    []string          `json:"photoIds"`
	Photos      []PhotoResponse   `json:"photos,omitempty"`
	Comments    []CommentResponse `json:"comments"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type BatchesListResponse struct {
	Success bool            `json:"success"`
	Batches []BatchResponse `json:"batches"`
}

type PhotoMutationResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Photo   PhotoResponse `json:"photo"`
}

type BatchMutationResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Batch   BatchResponse `json:"batch"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DeleteBatchResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	DeletedPhotos int      `json:"deletedPhotos"`
	FailedPhotos  []string `json:"failedPhotos"`
}

type DescriptionRequest struct {
	Description *string `json:"description"`
}

type CommentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func FromUploadFailures(failures []gallerysvc.UploadFailure) []FileIssue {
	out := make([]FileIssue, 0, len(failures))
	for _, f := range failures {
		out = append(out, FileIssue{Filename: f.FileName, Reason: f.Reason})
	}
	return out
}

func FromComments(comments []model.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentResponse{Author: c.Author, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return out
}

func FromPhoto(p model.Photo) PhotoResponse {
	return PhotoResponse{
		ID:          p.ID,
		URL:         p.MediaURL,
		MediaKey:    p.MediaKey,
		Description: p.Description,
		Comments:    FromComments(p.Comments),
		CreatedAt:   p.CreatedAt,
	}
}

func FromBatch(b model.Batch) BatchResponse {
	ids := b.PhotoIDs
	if ids == nil {
		ids = []string{}
	}
	return BatchResponse{
		ID:          b.ID,
		Description: b.Description,
		PhotoIDs:    ids,
		Comments:    FromComments(b.Comments),
		CreatedAt:   b.CreatedAt,
	}
}

func FromBatchView(v gallerysvc.BatchView) BatchResponse {
	resp := FromBatch(v.Batch)
	resp.Photos = make([]PhotoResponse, 0, len(v.Photos))
	for _, p := range v.Photos {
		resp.Photos = append(resp.Photos, FromPhoto(p))
	}
	return resp
}
