package service

import (
	"archive/zip"
	"bytes"
	"context"
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
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/observability"
	"github.com/noah-isme/skillup-api/internal/repository"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates validation of the file contents failed.
	ErrUploadScanFailed = errors.New("file scanning failed")
	// ErrUploadMissingFile indicates the multipart request carried no file.
	ErrUploadMissingFile = errors.New("file is required")
)

var allowedUploadTypes = map[string]struct{}{
	"application/pdf": {},
	"application/zip": {},
	"text/plain":      {},
	"image/png":       {},
	"image/jpeg":      {},
}

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates an assignment file, stores it and submits the resulting URL.
type UploadService interface {
	UploadAssignment(ctx context.Context, actor Actor, assignmentID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error)
}

type uploadService struct {
	storage     FileStorage
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	submit      SubmissionService
	logger      zerolog.Logger
	maxSize     int64
	tracer      trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage FileStorage, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, submit SubmissionService, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		storage:     storage,
		assignments: assignments,
		submissions: submissions,
		submit:      submit,
		logger:      logger.With().Str("component", "upload_service").Logger(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		tracer:      otel.Tracer("github.com/noah-isme/skillup-api/internal/service/upload"),
	}
}

func (s *uploadService) UploadAssignment(ctx context.Context, actor Actor, assignmentID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.assignment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("upload.max_bytes", s.maxSize),
		attribute.Int64("upload.assignment_id", int64(assignmentID)),
	)

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, ErrUploadMissingFile
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	// Reject before touching storage so conflicts do not leave orphaned files behind.
	if err := s.precheck(ctx, actor, assignmentID); err != nil {
		span.SetStatus(codes.Error, "precheck failed")
		return dto.SubmissionResponse{}, err
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.SubmissionResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.SubmissionResponse{}, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.SubmissionResponse{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.SubmissionResponse{}, ErrUploadTooLarge
	}

	fileType := normalizeMime(mimetype.Detect(buf.Bytes()).String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if _, ok := allowedUploadTypes[fileType]; !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, fileType)
	}

	if err := s.scan(buf.Bytes(), fileType); err != nil {
		observability.UploadRejected().WithLabelValues("scan").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return dto.SubmissionResponse{}, err
	}

	name := fmt.Sprintf("assignment-%d-student-%d-%s", assignmentID, actor.ID, sanitizeFileName(file.Filename))
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.SubmissionResponse{}, fmt.Errorf("store upload: %w", err)
	}

	s.logger.Info().
		Uint("assignment_id", assignmentID).
		Uint("student_id", actor.ID).
		Str("mime", fileType).
		Int("size_bytes", buf.Len()).
		Msg("assignment file stored")
	span.SetStatus(codes.Ok, "stored")

	return s.submit.SubmitAssignment(ctx, actor, assignmentID, dto.AssignmentSubmitRequest{FileURL: url})
}

func (s *uploadService) precheck(ctx context.Context, actor Actor, assignmentID uint) error {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("load assignment: %w", err)
	}
	if _, err := s.submissions.GetByStudentAndAssignment(ctx, actor.ID, assignmentID); err == nil {
		return ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check existing submission: %w", err)
	}
	return nil
}

func (s *uploadService) scan(payload []byte, mime string) error {
	if mime != "application/zip" {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(s.maxSize*20) {
			return fmt.Errorf("zip archive uncompressed size too large: %w", ErrUploadScanFailed)
		}
	}
	return nil
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

// normalizeMime strips parameters such as charset and folds zip aliases.
func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	switch lower {
	case "application/x-zip-compressed":
		return "application/zip"
	default:
		return lower
	}
}
