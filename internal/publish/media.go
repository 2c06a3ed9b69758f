package publish

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/mikequentel/extractposter/internal/fault"
)

// Media is one file of an extract, loaded for upload.
type Media struct {
	Path string
	Name string
	Data []byte
	MIME string
}

func (m *Media) Size() string { return humanize.Bytes(uint64(len(m.Data))) }

// ReadMedia loads path and detects its MIME type from the content, falling back
// to the extension when the content is not recognised.
func ReadMedia(path string) (*Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.New(fault.ErrUpload, "read "+path, err)
	}
	return &Media{
		Path: path,
		Name: filepath.Base(path),
		Data: data,
		MIME: detectMIME(path, data),
	}, nil
}

func detectMIME(path string, data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is("application/octet-stream") || mt.Is("text/plain") {
		if byExt := mimeByExt(path); byExt != "" {
			return byExt
		}
	}
	return strings.SplitN(mt.String(), ";", 2)[0]
}

func mimeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	}
	return ""
}

// Multipart encodes the media as a single file part named field, the way the
// Mastodon and Twitter upload endpoints expect it. It returns the body and its
// Content-Type header.
func (m *Media) Multipart(field string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, m.Name))
	h.Set("Content-Type", m.MIME)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(m.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
