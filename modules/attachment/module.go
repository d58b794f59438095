package attachment

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/example/realtime-chat/domain/chat"
)

// BucketName is the storage bucket holding attachments.
const BucketName = "attachments"

// Module implements the attachment module using the fs-jetstream plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	bucket  fsjetstream.FileStoragePort
	service *Service
	maxSize int64
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new attachment module.
func NewModule(maxSize int64, logger types.Logger) *Module {
	return &Module{
		maxSize: maxSize,
		logger:  logger.WithModule("attachment"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "attachment"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start initializes the module and its service.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}
	m.bucket = m.storage.Bucket(BucketName)
	if m.bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}
	m.service = NewService(m.bucket, m.maxSize)

	m.logger.Info("Attachment module started", "bucket", BucketName, "max_size", m.maxSize)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Attachment module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"bucket": BucketName},
	}
}

// Service returns the attachment service, nil before Start.
func (m *Module) Service() *Service {
	return m.service
}

// Resolve checks an attachment reference. It is usable before Start and
// reports every reference as unresolved until storage is available.
func (m *Module) Resolve(ctx context.Context, ref string) error {
	if m.service == nil {
		return domain.NewError(domain.KindAttachmentUnresolved, "attachment storage is not available")
	}
	return m.service.Resolve(ctx, ref)
}

// Upload stores a file.
func (m *Module) Upload(ctx context.Context, filename string, data []byte, contentType string) (*Attachment, error) {
	if m.service == nil {
		return nil, fmt.Errorf("attachment storage is not available")
	}
	att, err := m.service.Upload(ctx, filename, data, contentType)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Attachment stored", "ref", att.Ref, "size", att.Size)
	return att, nil
}

// Open returns a stored file.
func (m *Module) Open(ctx context.Context, ref string) ([]byte, *Attachment, error) {
	if m.service == nil {
		return nil, nil, fmt.Errorf("attachment storage is not available")
	}
	return m.service.Open(ctx, ref)
}
