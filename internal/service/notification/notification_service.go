// internal/service/notification/notification_service.go
package notification

import (
	"context"
	"fmt"
	"time"

	"repurpose-service/internal/domain/notification"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmailSender delivers one rendered email. Satisfied by email.Sender.
type EmailSender interface {
	Send(to, subject, bodyHTML string) error
}

// SentLog is the persistent notification audit, also the dedup fallback
// when redis is unavailable. Satisfied by postgres.NotificationRepository.
type SentLog interface {
	RecordSent(ctx context.Context, userID int64, template notification.Template) error
	SentSince(ctx context.Context, userID int64, template notification.Template, since time.Time) (bool, error)
}

// dedupWindows throttles repeat sends per template. Templates absent from
// the map always send (one-shot events like a redemption).
var dedupWindows = map[notification.Template]time.Duration{
	notification.TemplateLowCredit:    7 * 24 * time.Hour,
	notification.TemplateReengagement: 7 * 24 * time.Hour,
}

type Service struct {
	sender EmailSender
	log    SentLog
	cache  redis.UniversalClient
	logger *zap.Logger
}

// NewService builds the notifier. cache may be nil; dedup then relies on
// the sent log alone.
func NewService(sender EmailSender, log SentLog, cache redis.UniversalClient, logger *zap.Logger) *Service {
	return &Service{sender: sender, log: log, cache: cache, logger: logger}
}

// Notify renders and delivers one templated notification. Errors are
// logged, never returned: the engine operations that trigger sends must
// not fail because email did.
func (s *Service) Notify(ctx context.Context, req *notification.Request) {
	if req.Email == "" {
		return
	}

	window, throttled := dedupWindows[req.Template]
	if throttled {
		sent, err := s.alreadySent(ctx, req.UserID, req.Template, window)
		if err != nil {
			s.logger.Warn("notification dedup check failed", zap.Error(err))
		}
		if sent {
			s.logger.Debug("notification suppressed by dedup",
				zap.Int64("user_id", req.UserID),
				zap.String("template", string(req.Template)),
			)
			return
		}
	}

	subject, body := render(req)
	if err := s.sender.Send(req.Email, subject, body); err != nil {
		s.logger.Error("notification send failed",
			zap.Int64("user_id", req.UserID),
			zap.String("template", string(req.Template)),
			zap.Error(err),
		)
		return
	}

	if throttled {
		s.markSent(ctx, req.UserID, req.Template, window)
	}
	if err := s.log.RecordSent(ctx, req.UserID, req.Template); err != nil {
		s.logger.Warn("notification log write failed", zap.Error(err))
	}
	s.logger.Info("notification sent",
		zap.Int64("user_id", req.UserID),
		zap.String("template", string(req.Template)),
	)
}

func dedupKey(userID int64, template notification.Template) string {
	return fmt.Sprintf("notify:%s:%d", template, userID)
}

func (s *Service) alreadySent(ctx context.Context, userID int64, template notification.Template, window time.Duration) (bool, error) {
	if s.cache != nil {
		n, err := s.cache.Exists(ctx, dedupKey(userID, template)).Result()
		if err == nil {
			return n > 0, nil
		}
		// Redis down: fall back to the sent log.
	}
	return s.log.SentSince(ctx, userID, template, time.Now().Add(-window))
}

func (s *Service) markSent(ctx context.Context, userID int64, template notification.Template, window time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, dedupKey(userID, template), 1, window).Err(); err != nil {
		s.logger.Warn("notification dedup mark failed", zap.Error(err))
	}
}
