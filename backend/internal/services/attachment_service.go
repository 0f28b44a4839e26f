package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/internal/models"
	"knowledge-base/backend/internal/store"
	apperrors "knowledge-base/backend/pkg/errors"
)

// UploadInput describes one uploaded file
type UploadInput struct {
	NoteID   *int64
	Name     string
	MimeType string
	Body     io.Reader
}

// AttachmentService stores uploaded files under the media root
type AttachmentService struct {
	base
	mediaRoot string
	maxBytes  int64
}

// FileTypeFor maps a MIME type to the coarse attachment class
func FileTypeFor(mimeType string) models.FileType {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(mimeType)
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return models.FileTypeImage
	case strings.HasPrefix(mediaType, "video/"):
		return models.FileTypeVideo
	case strings.HasPrefix(mediaType, "audio/"):
		return models.FileTypeAudio
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/pdf",
		mediaType == "application/msword",
		mediaType == "application/rtf",
		strings.HasPrefix(mediaType, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(mediaType, "application/vnd.ms-"),
		strings.HasPrefix(mediaType, "application/vnd.oasis.opendocument"):
		return models.FileTypeDocument
	default:
		return models.FileTypeOther
	}
}

// Upload writes the file to disk and records it. The file is removed again
// when it is too large or the record cannot be written.
func (s *AttachmentService) Upload(ctx context.Context, ownerID int64, in UploadInput) (*models.Attachment, error) {
	name := filepath.Base(strings.TrimSpace(in.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, apperrors.NewValidationFailed("file", "is required")
	}
	if in.Body == nil {
		return nil, apperrors.NewValidationFailed("file", "is required")
	}

	mimeType := in.MimeType
	ext := strings.ToLower(filepath.Ext(name))
	if mimeType == "" || mimeType == "application/octet-stream" {
		if guessed := mime.TypeByExtension(ext); guessed != "" {
			mimeType = guessed
		} else if mimeType == "" {
			mimeType = "application/octet-stream"
		}
	}

	if in.NoteID != nil {
		if _, err := s.db.Reader().GetNote(ctx, ownerID, *in.NoteID); err != nil {
			if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
				return nil, apperrors.NewValidationFailed("note", "does not exist")
			}
			return nil, err
		}
	}

	rel := filepath.Join("attachments", fmt.Sprint(ownerID), uuid.NewString()+ext)
	size, err := s.write(rel, in.Body)
	if err != nil {
		return nil, err
	}

	a := &models.Attachment{
		OwnerID:  ownerID,
		NoteID:   in.NoteID,
		Name:     name,
		Path:     filepath.ToSlash(rel),
		FileType: FileTypeFor(mimeType),
		MimeType: mimeType,
		Size:     size,
	}
	if err := s.db.InTx(ctx, func(tx *store.Tx) error {
		return tx.CreateAttachment(ctx, a)
	}); err != nil {
		s.removeFile(a.Path)
		return nil, err
	}

	s.logger.Info("Attachment uploaded",
		zap.Int64("owner_id", ownerID),
		zap.Int64("attachment_id", a.ID),
		zap.String("file_type", string(a.FileType)),
		zap.Int64("size", size),
	)
	return a, nil
}

// write copies body to rel under the media root, enforcing the size limit
func (s *AttachmentService) write(rel string, body io.Reader) (int64, error) {
	full := filepath.Join(s.mediaRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, apperrors.NewStorageFailed("create media directory", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, apperrors.NewStorageFailed("create attachment file", err)
	}

	src := body
	if s.maxBytes > 0 {
		src = io.LimitReader(body, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(full)
		return 0, apperrors.NewStorageFailed("write attachment file", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(full)
		return 0, apperrors.NewValidationFailed("file", fmt.Sprintf("exceeds the %d byte limit", s.maxBytes))
	}
	return n, nil
}

func (s *AttachmentService) removeFile(rel string) {
	if rel == "" {
		return
	}
	if err := os.Remove(s.FilePath(rel)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove attachment file", zap.String("path", rel), zap.Error(err))
	}
}

// FilePath resolves a stored attachment path on disk
func (s *AttachmentService) FilePath(rel string) string {
	return filepath.Join(s.mediaRoot, filepath.FromSlash(rel))
}

// Get returns one of the owner's attachments
func (s *AttachmentService) Get(ctx context.Context, ownerID, id int64) (*models.Attachment, error) {
	return s.db.Reader().GetAttachment(ctx, ownerID, id)
}

// List returns a page of attachments, optionally restricted to one note
func (s *AttachmentService) List(ctx context.Context, ownerID int64, filter store.AttachmentFilter, page models.Page) (*models.Paginated[*models.Attachment], error) {
	if filter.FileType != "" && !filter.FileType.Valid() {
		return nil, apperrors.NewValidationFailed("type", "unknown file type "+string(filter.FileType))
	}
	return s.db.Reader().ListAttachments(ctx, ownerID, filter, page)
}

// Recent returns up to limit of the newest uploads
func (s *AttachmentService) Recent(ctx context.Context, ownerID int64, limit int) ([]*models.Attachment, error) {
	return s.db.Reader().RecentAttachments(ctx, ownerID, recentLimit(limit, constants.RecentLimit))
}

// Delete removes one attachment and its file
func (s *AttachmentService) Delete(ctx context.Context, ownerID, id int64) error {
	removed, err := s.BulkDelete(ctx, ownerID, []int64{id})
	if err != nil {
		return err
	}
	if removed == 0 {
		return apperrors.NewNotFound("attachment", id)
	}
	return nil
}

// BulkDelete removes the owner's attachments among ids and returns how
// many were removed. Ids of other owners are ignored.
func (s *AttachmentService) BulkDelete(ctx context.Context, ownerID int64, ids []int64) (int, error) {
	var removed []*models.Attachment
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		removed, err = tx.DeleteAttachments(ctx, ownerID, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, a := range removed {
		s.removeFile(a.Path)
	}
	if len(removed) > 0 {
		s.logger.Info("Attachments deleted", zap.Int64("owner_id", ownerID), zap.Int("count", len(removed)))
	}
	return len(removed), nil
}
