package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/pkg/jobs"
)

const auditJobType = "audit.write"

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder accepts audit entries from request paths.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry describes one auditable event.
type AuditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	Meta       models.RequestMeta
}

// AuditConfig tunes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// AuditService writes audit entries asynchronously through a job queue so request
// latency does not depend on the audit table.
type AuditService struct {
	repo    auditWriter
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service and its queue. Call Start before recording.
func NewAuditService(repo auditWriter, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return svc
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record queues entry for persistence. Failures are logged and never surface to callers.
func (s *AuditService) Record(_ context.Context, entry AuditEntry) {
	log, err := entry.toModel()
	if err != nil {
		s.logger.Warn("failed to encode audit entry", zap.String("action", entry.Action), zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}); err != nil {
		s.metrics.RecordAuditDropped()
		s.logger.Warn("audit entry dropped", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, log)
}

func (e AuditEntry) toModel() (*models.AuditLog, error) {
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    e.Action,
		Resource:  e.Resource,
		IPAddress: e.Meta.IP,
		UserAgent: e.Meta.UserAgent,
	}
	if e.UserID != "" {
		userID := e.UserID
		log.UserID = &userID
	}
	if e.ResourceID != "" {
		resourceID := e.ResourceID
		log.ResourceID = &resourceID
	}
	if len(e.Details) > 0 {
		body, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		log.NewValues = body
	}
	return log, nil
}

type nopAuditRecorder struct{}

func (nopAuditRecorder) Record(context.Context, AuditEntry) {}
