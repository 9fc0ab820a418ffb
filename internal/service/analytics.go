package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

// AnalyticsService persists access analytics on the consumer side of the
// event pipeline, decoupled from the redirect hot path.
type AnalyticsService struct {
	linkRepo LinkRepository
	logRepo  AccessLogRepository
}

func NewAnalyticsService(linkRepo LinkRepository, logRepo AccessLogRepository) *AnalyticsService {
	return &AnalyticsService{
		linkRepo: linkRepo,
		logRepo:  logRepo,
	}
}

// RecordAccessLog resolves the owning link by code and appends an access
// log entry. If the link no longer exists the event is simply not
// attributable: the method reports false without error so the caller can
// discard the event silently. Redelivered events append another entry,
// which at-least-once delivery permits.
func (s *AnalyticsService) RecordAccessLog(ctx context.Context, code, ipAddress, userAgent string, accessedAt time.Time) (bool, error) {
	const op = "service.AnalyticsService.RecordAccessLog"

	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("%s: failed to get short link: %w", op, err)
	}

	entry := models.NewShortLinkAccessLog(link.ID, link.Code, ipAddress, userAgent, accessedAt)

	if err := s.logRepo.Create(ctx, entry); err != nil {
		return false, fmt.Errorf("%s: failed to create access log entry: %w", op, err)
	}

	return true, nil
}
