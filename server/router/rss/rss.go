// Package rss serves the due queue as an RSS 2.0 feed so a feed reader can
// poll a daily review reminder.
package rss

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/server/service/review"
	"github.com/vocadrill/vocadrill/server/timezone"
)

// maxFeedItems caps how many due cards one feed fetch lists.
const maxFeedItems = 50

// RSSService renders feeds from the review queue.
type RSSService struct {
	Profile       *profile.Profile
	ReviewService review.Service

	loc *time.Location
}

// NewRSSService creates a feed service over the review queue.
func NewRSSService(serverProfile *profile.Profile, reviewService review.Service) *RSSService {
	loc, err := timezone.ParseTimezone(serverProfile.Timezone)
	if err != nil {
		slog.Warn("invalid timezone in profile, using local", slog.String("timezone", serverProfile.Timezone))
	}
	return &RSSService{
		Profile:       serverProfile,
		ReviewService: reviewService,
		loc:           loc,
	}
}

// RegisterRoutes registers the feed endpoints.
func (s *RSSService) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/feed/due.rss", s.GetDueFeed)
}

// GetDueFeed returns the currently due cards as RSS 2.0.
//
// GET /feed/due.rss
func (s *RSSService) GetDueFeed(c echo.Context) error {
	ctx := c.Request().Context()

	queue, err := s.ReviewService.DueQueue(ctx, maxFeedItems)
	if err != nil {
		slog.Error("failed to fetch due queue for feed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch due queue")
	}

	now := time.Now().In(s.loc)
	feed := &feeds.Feed{
		Title:       "vocadrill: cards due for review",
		Link:        &feeds.Link{Href: s.Profile.InstanceURL + "/feed/due.rss"},
		Description: fmt.Sprintf("%d cards due on %s", queue.TotalDue, now.Format("2006-01-02")),
		Created:     now,
	}
	feed.Items = make([]*feeds.Item, 0, len(queue.Items))
	for _, item := range queue.Items {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       item.Card.Word,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/cards/%s", s.Profile.InstanceURL, item.Card.UID)},
			Description: s.itemDescription(item),
			Id:          item.Card.UID,
			Created:     time.Unix(item.Card.CreatedTs, 0).In(s.loc),
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		slog.Error("failed to render due feed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render feed")
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/xml")
	return c.String(http.StatusOK, rss)
}

func (s *RSSService) itemDescription(item *review.QueueItem) string {
	dueLabel := "never reviewed"
	if item.Stats.NextReviewDate != nil {
		dueLabel = "due since " + item.Stats.NextReviewDate.In(s.loc).Format("2006-01-02")
	}
	text := item.Card.Word
	if item.Card.Translation != "" {
		text += " / " + item.Card.Translation
	}
	return fmt.Sprintf("%s (%s, %s)", text, item.Classification.Label, dueLabel)
}
