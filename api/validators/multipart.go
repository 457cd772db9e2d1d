package validators

import (
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
)

// multipartOverhead leaves room for the non-file form fields.
const multipartOverhead = 1 << 20

// ParseMultipart parses a multipart form whose file parts may not exceed maxFileBytes.
func ParseMultipart(r *http.Request, maxFileBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxFileBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.New(pkgerrors.CodeValidation, "upload too large").
				WithDetails(map[string]any{"maxBytes": maxFileBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	return nil
}

// FormFile reads an optional file part from a parsed multipart form. A missing
// part yields nil bytes and no error.
func FormFile(r *http.Request, field string, maxBytes int64) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field+" upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read "+field+" upload")
	}
	if int64(len(data)) > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" exceeds maximum size").
			WithDetails(map[string]any{"maxBytes": maxBytes})
	}
	return data, nil
}
