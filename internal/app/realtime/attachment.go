package realtime

import (
	"path/filepath"
	"strings"
	"time"

	"pitchchat/internal/app/store"
	"pitchchat/internal/pkg/errs"
)

const (
	// MaxContentBytes caps message content length.
	MaxContentBytes = 5000

	// MaxAttachmentsCount caps attachments per message.
	MaxAttachmentsCount = 3

	// MaxAttachmentSizeMB is the attachment size limit in megabytes.
	MaxAttachmentSizeMB = 10

	// MaxAttachmentSize is the attachment size limit in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// PresignedURLDuration is how long presigned attachment URLs stay valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes lists the attachment types accepted in conversations:
// images plus the document formats pitch decks and one-pagers ship as.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"application/pdf": {},
}

// ExtToMIME maps accepted file extensions to their MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

// ValidateFileSize checks an attachment size against the limit.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks that the file name's extension and the declared
// MIME type are both allowed and agree with each other.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrAttachmentTypeInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return errs.NewError(errs.ErrAttachmentTypeInvalid)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok {
		return errs.NewError(errs.ErrAttachmentTypeInvalid)
	}

	if expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrAttachmentTypeInvalid)
	}

	return nil
}

// validateAttachments applies the per-message attachment rules: count, key
// namespace (keys live under the conversation's prefix) and file type.
func validateAttachments(conversationID string, attachments []store.Attachment) *errs.CustomError {
	if len(attachments) > MaxAttachmentsCount {
		return errs.NewError(errs.ErrAttachmentCountInvalid)
	}

	expectedKeyPrefix := conversationID + "/"

	for _, a := range attachments {
		if !strings.HasPrefix(a.Key, expectedKeyPrefix) {
			return errs.NewError(errs.ErrAttachmentKeyInvalid)
		}

		if err := ValidateFileType(a.Name, a.MimeType); err != nil {
			return err
		}
	}

	return nil
}
