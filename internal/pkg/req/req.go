/*
Package req provides request parsing helpers for the REST surface.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"pitchchat/internal/pkg/errs"
)

// MaxJSONBodySize caps JSON request bodies at 1 MB. The presign endpoints
// carry only file metadata, so anything larger is hostile or broken.
const MaxJSONBodySize int64 = 1 << 20

// BindJSON decodes the request body into dst, rejecting unknown fields,
// trailing content and non-JSON content types.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
