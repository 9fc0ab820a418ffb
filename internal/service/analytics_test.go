package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/database"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

type AnalyticsServiceTestSuite struct {
	suite.Suite
	errUnknown   error
	linkRepoMock *MockLinkRepository
	logRepoMock  *MockAccessLogRepository
	svc          *AnalyticsService
}

func (suite *AnalyticsServiceTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
}

func (suite *AnalyticsServiceTestSuite) SetupSubTest() {
	suite.linkRepoMock = new(MockLinkRepository)
	suite.logRepoMock = new(MockAccessLogRepository)
	suite.svc = NewAnalyticsService(suite.linkRepoMock, suite.logRepoMock)
}

func (suite *AnalyticsServiceTestSuite) TearDownSubTest() {
	suite.linkRepoMock.AssertExpectations(suite.T())
	suite.logRepoMock.AssertExpectations(suite.T())
}

func (suite *AnalyticsServiceTestSuite) TestRecordAccessLog() {
	ctx := context.Background()
	accessedAt := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

	suite.Run("missing code is a silent discard", func() {
		suite.linkRepoMock.
			On("GetByCode", ctx, "missing").
			Once().
			Return(nil, database.ErrLinkNotFound)

		recorded, err := suite.svc.RecordAccessLog(ctx, "missing", "203.0.113.7", "curl/8.0", accessedAt)

		suite.NoError(err)
		suite.False(recorded)
		suite.logRepoMock.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
	})

	suite.Run("success appends an entry", func() {
		linkID := uuid.New()
		suite.linkRepoMock.
			On("GetByCode", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: linkID, Code: "abc123"}, nil)
		suite.logRepoMock.
			On("Create", ctx, mock.MatchedBy(func(entry *models.ShortLinkAccessLog) bool {
				return entry.ShortLinkID == linkID &&
					entry.Code == "abc123" &&
					entry.IPAddress == "203.0.113.7" &&
					entry.UserAgent == "curl/8.0" &&
					entry.AccessedAt.Equal(accessedAt)
			})).
			Once().
			Return(nil)

		recorded, err := suite.svc.RecordAccessLog(ctx, "abc123", "203.0.113.7", "curl/8.0", accessedAt)

		suite.NoError(err)
		suite.True(recorded)
	})

	suite.Run("redelivered event is tolerated", func() {
		linkID := uuid.New()
		suite.linkRepoMock.
			On("GetByCode", ctx, "abc123").
			Times(2).
			Return(&models.ShortLink{ID: linkID, Code: "abc123"}, nil)
		suite.logRepoMock.
			On("Create", ctx, mock.Anything).
			Times(2).
			Return(nil)

		for i := 0; i < 2; i++ {
			recorded, err := suite.svc.RecordAccessLog(ctx, "abc123", "203.0.113.7", "curl/8.0", accessedAt)

			suite.NoError(err)
			suite.True(recorded)
		}
	})

	suite.Run("store error surfaces", func() {
		suite.linkRepoMock.
			On("GetByCode", ctx, "abc123").
			Once().
			Return(nil, suite.errUnknown)

		recorded, err := suite.svc.RecordAccessLog(ctx, "abc123", "203.0.113.7", "curl/8.0", accessedAt)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.False(recorded)
	})

	suite.Run("entry creation error surfaces", func() {
		suite.linkRepoMock.
			On("GetByCode", ctx, "abc123").
			Once().
			Return(&models.ShortLink{ID: uuid.New(), Code: "abc123"}, nil)
		suite.logRepoMock.
			On("Create", ctx, mock.Anything).
			Once().
			Return(suite.errUnknown)

		recorded, err := suite.svc.RecordAccessLog(ctx, "abc123", "203.0.113.7", "curl/8.0", accessedAt)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.False(recorded)
	})
}

func TestAnalyticsService(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceTestSuite))
}
