package attachment

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/google/uuid"

	domain "github.com/example/realtime-chat/domain/chat"
)

const defaultContentType = "application/octet-stream"

// Attachment describes a stored file. Ref is what messages carry.
type Attachment struct {
	Ref         string    `json:"ref"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Digest      string    `json:"digest,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// sanitizeFilename removes path separators and dangerous characters from filename.
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(filename))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.ReplaceAll(clean, "\\", "_")
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}

// parseRef splits a reference into its file id and name.
func parseRef(ref string) (id, name string, err error) {
	id, name, found := strings.Cut(ref, "/")
	if !found || name == "" {
		return "", "", domain.NewError(domain.KindAttachmentUnresolved, "malformed attachment reference %q", ref)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", domain.NewError(domain.KindAttachmentUnresolved, "malformed attachment reference %q", ref)
	}
	return id, name, nil
}

func contentTypeOf(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok && ct != "" {
		return ct
	}
	return defaultContentType
}

// Service stores attachments in an object storage bucket. Objects are keyed
// "<uuid>/<filename>" and the key is the attachment reference.
type Service struct {
	bucket  fsjetstream.FileStoragePort
	maxSize int64
}

// NewService creates an attachment service over bucket. maxSize <= 0 means
// no limit.
func NewService(bucket fsjetstream.FileStoragePort, maxSize int64) *Service {
	return &Service{bucket: bucket, maxSize: maxSize}
}

// Upload stores data and returns its reference.
func (s *Service) Upload(ctx context.Context, filename string, data []byte, contentType string) (*Attachment, error) {
	if len(data) == 0 {
		return nil, domain.Validation("file is empty")
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, domain.Validation("file exceeds %d bytes", s.maxSize)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	safeName := sanitizeFilename(filename)
	fileID := uuid.New().String()
	ref := fileID + "/" + safeName

	info, err := s.bucket.Put(ctx, ref, data,
		fsjetstream.WithDescription(fmt.Sprintf("Attachment: %s", safeName)),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type":  contentType,
			"Original-Name": filename,
			"File-ID":       fileID,
			"Uploaded-At":   time.Now().UTC().Format(time.RFC3339),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	return &Attachment{
		Ref:         ref,
		Name:        safeName,
		Size:        int64(info.Size),
		ContentType: contentType,
		Digest:      info.Digest,
		CreatedAt:   info.ModTime,
	}, nil
}

// Stat returns the metadata of a stored attachment.
func (s *Service) Stat(_ context.Context, ref string) (*Attachment, error) {
	id, _, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	objects, err := s.bucket.List(fsjetstream.WithPrefix(id + "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	for _, obj := range objects {
		if obj.Name != ref {
			continue
		}
		return &Attachment{
			Ref:         obj.Name,
			Name:        strings.TrimPrefix(obj.Name, id+"/"),
			Size:        int64(obj.Size),
			ContentType: contentTypeOf(obj.Headers),
			Digest:      obj.Digest,
			CreatedAt:   obj.ModTime,
		}, nil
	}
	return nil, domain.NewError(domain.KindAttachmentUnresolved, "attachment %s does not exist", ref)
}

// Resolve returns nil when ref names a stored attachment.
func (s *Service) Resolve(ctx context.Context, ref string) error {
	_, err := s.Stat(ctx, ref)
	return err
}

// Open returns an attachment's content. A missing attachment is not_found.
func (s *Service) Open(ctx context.Context, ref string) ([]byte, *Attachment, error) {
	att, err := s.Stat(ctx, ref)
	if err != nil {
		if domain.KindOf(err) == domain.KindAttachmentUnresolved {
			return nil, nil, domain.NotFound("attachment %s", ref)
		}
		return nil, nil, err
	}
	data, err := s.bucket.Get(att.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, att, nil
}
