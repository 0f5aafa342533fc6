package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campus-portal-api/internal/observability"
)

const encodeChunkSize = 64 * 1024

var (
	// ErrUploadMissing indicates no file accompanied the request.
	ErrUploadMissing = errors.New("file is required")
	// ErrUploadEmpty indicates the uploaded file has no content.
	ErrUploadEmpty = errors.New("file is empty")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var allowedUploadTypes = map[string]struct{}{
	"application/pdf":    {},
	"text/plain":         {},
	"application/zip":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.ms-powerpoint":                                             {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"application/vnd.ms-excel":                                                  {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
}

// FileStorage abstracts optional upload mirrors. Upload returns the public URL and the id
// Delete takes.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, string, error)
	Delete(ctx context.Context, id string) error
}

// EncodedFile is an uploaded file turned into a self-contained data URL.
type EncodedFile struct {
	Name      string
	MimeType  string
	SizeBytes int64
	DataURL   string
	MirrorURL string
	MirrorID  string
}

// PayloadEncoder reads uploaded files into data URLs. Reading checks the context between
// chunks so a caller that goes away abandons the encode without producing a result.
type PayloadEncoder struct {
	maxSize int64
	mirror  FileStorage
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewPayloadEncoder constructs an encoder. mirror may be nil.
func NewPayloadEncoder(maxSizeMB int, mirror FileStorage, logger zerolog.Logger) *PayloadEncoder {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &PayloadEncoder{
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		mirror:  mirror,
		logger:  logger.With().Str("component", "payload_encoder").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/campus-portal-api/internal/service/upload"),
	}
}

// MaxBytes returns the per-file ceiling.
func (e *PayloadEncoder) MaxBytes() int64 { return e.maxSize }

// EncodeFile validates and encodes a multipart upload.
func (e *PayloadEncoder) EncodeFile(ctx context.Context, file *multipart.FileHeader) (EncodedFile, error) {
	if file == nil {
		return EncodedFile{}, ErrUploadMissing
	}
	if file.Size > e.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return EncodedFile{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return EncodedFile{}, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	return e.Encode(ctx, file.Filename, handle)
}

// Encode reads r fully (up to the size ceiling) and returns its data URL form.
func (e *PayloadEncoder) Encode(ctx context.Context, name string, r io.Reader) (EncodedFile, error) {
	ctx, span := e.tracer.Start(ctx, "upload.encode", trace.WithAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(name)),
		attribute.Int64("upload.max_bytes", e.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	content, err := e.read(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return EncodedFile{}, err
	}
	if len(content) == 0 {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		return EncodedFile{}, ErrUploadEmpty
	}

	detected := mimetype.Detect(content)
	mimeType, ok := allowedType(detected)
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return EncodedFile{}, ErrUploadTypeNotAllowed
	}

	if err := ctx.Err(); err != nil {
		return EncodedFile{}, err
	}

	encoded := EncodedFile{
		Name:      displayFileName(name, detected.Extension()),
		MimeType:  mimeType,
		SizeBytes: int64(len(content)),
		DataURL:   "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content),
	}
	encoded.MirrorURL, encoded.MirrorID = e.mirrorCopy(ctx, encoded.Name, content)

	span.SetAttributes(attribute.Int64("upload.size_bytes", encoded.SizeBytes))
	span.SetStatus(codes.Ok, "encoded")
	return encoded, nil
}

func (e *PayloadEncoder) read(ctx context.Context, r io.Reader) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	chunk := make([]byte, encodeChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if int64(buf.Len()) > e.maxSize {
				observability.UploadRejected().WithLabelValues("size").Inc()
				return nil, ErrUploadTooLarge
			}
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
	}
}

// Discard removes the mirror copy of a file whose record was never stored.
func (e *PayloadEncoder) Discard(ctx context.Context, encoded EncodedFile) {
	if e.mirror == nil || encoded.MirrorID == "" {
		return
	}
	if err := e.mirror.Delete(ctx, encoded.MirrorID); err != nil {
		e.logger.Warn().Err(err).Str("mirror_id", encoded.MirrorID).Msg("failed to remove orphaned upload mirror")
	}
}

func (e *PayloadEncoder) mirrorCopy(ctx context.Context, name string, content []byte) (string, string) {
	if e.mirror == nil {
		return "", ""
	}
	url, id, err := e.mirror.Upload(ctx, sanitizeFileName(name), bytes.NewReader(content))
	if err != nil {
		e.logger.Warn().Err(err).Str("file", name).Msg("upload mirror failed, keeping inline payload only")
		return "", ""
	}
	return url, id
}

func allowedType(detected *mimetype.MIME) (string, bool) {
	base := baseMime(detected.String())
	if strings.HasPrefix(base, "image/") {
		return base, true
	}
	if _, ok := allowedUploadTypes[base]; ok {
		return base, true
	}
	return base, false
}

func baseMime(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

func displayFileName(name, detectedExt string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("upload-%d%s", time.Now().Unix(), detectedExt)
	}
	return name
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
