package handler

import (
	"fmt"
	"net/http"

	"pitchchat/internal/app/realtime"
	"pitchchat/internal/pkg/auth/jwt"
	"pitchchat/internal/pkg/errs"
	"pitchchat/internal/pkg/req"
	"pitchchat/internal/pkg/resp"
)

// PresignUploadRequest asks for an upload URL for one attachment.
type PresignUploadRequest struct {
	ConversationID string `json:"conversationId"`
	FileName       string `json:"fileName"`
	MimeType       string `json:"mimeType"`
	FileSize       int64  `json:"fileSize"`
}

// PresignUploadResponse carries the key to reference in a send_message event
// and the URL to PUT the file body to.
type PresignUploadResponse struct {
	FileKey   string `json:"fileKey"`
	UploadURL string `json:"uploadUrl"`
}

// HandlePresignUpload validates attachment metadata and returns a presigned
// upload URL. Keys are namespaced under the conversation id, the same prefix
// the message router enforces at send time.
func HandlePresignUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var body PresignUploadRequest
		if customErr := req.BindJSON(w, r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if body.ConversationID == "" || body.FileName == "" || body.MimeType == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := realtime.ValidateFileSize(body.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := realtime.ValidateFileType(body.FileName, body.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := fmt.Sprintf("%s/%s/%s", body.ConversationID, payload.ID, body.FileName)

		uploadURL, err := deps.Storage.PresignUpload(r.Context(), fileKey, body.MimeType, body.FileSize, realtime.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, PresignUploadResponse{
			FileKey:   fileKey,
			UploadURL: uploadURL,
		})
	}
}

// HandlePresignDownload returns a presigned download URL for an attachment key.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("key")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		downloadURL, err := deps.Storage.PresignDownload(r.Context(), fileKey, realtime.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{
			"downloadUrl": downloadURL,
		})
	}
}
