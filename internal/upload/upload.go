package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// FieldName is the multipart field carrying the audio file
const FieldName = "file"

// ErrNoFile is returned when the request carries no file part
var ErrNoFile = errors.New("no file in upload")

// File is an uploaded audio file held in memory
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file length in bytes
func (f *File) Size() int {
	return len(f.Data)
}

// Reader reads multipart uploads
type Reader struct {
	maxBytes int64
}

// NewReader creates a reader; maxBytes <= 0 disables the size cap
func NewReader(maxBytes int64) *Reader {
	return &Reader{maxBytes: maxBytes}
}

// FirstFile returns exactly one file from a multipart request: the first part
// of the "file" field when present, otherwise the first file part of any
// field. Remaining parts are ignored. No codec or type validation is done.
func (u *Reader) FirstFile(w http.ResponseWriter, r *http.Request) (*File, error) {
	if u.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, u.maxBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("failed to read multipart body: %w", err)
	}

	var fallback *File
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart part: %w", err)
		}

		if part.FileName() == "" {
			part.Close()
			continue
		}

		if part.FormName() != FieldName && fallback != nil {
			part.Close()
			continue
		}

		file, err := readPart(part)
		part.Close()
		if err != nil {
			return nil, err
		}
		if part.FormName() == FieldName {
			return file, nil
		}
		fallback = file
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoFile
}

func readPart(part *multipart.Part) (*File, error) {
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &File{
		Name:        filepath.Base(part.FileName()),
		ContentType: DetectContentType(data, part.Header.Get("Content-Type")),
		Data:        data,
	}, nil
}

// DetectContentType sniffs the audio container type. The declared type is
// kept when sniffing only yields the generic binary type.
func DetectContentType(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	if detected.Is("application/octet-stream") && declared != "" {
		return declared
	}
	return detected.String()
}
