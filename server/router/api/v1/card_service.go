package v1

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/vocadrill/vocadrill/plugin/srs"
	apierrors "github.com/vocadrill/vocadrill/server/internal/errors"
	"github.com/vocadrill/vocadrill/store"
)

// defaultPageSize caps unpaged listings.
const defaultPageSize = 100

// Card is the API representation of a vocabulary card together with its
// scheduling snapshot.
type Card struct {
	UID            string   `json:"uid"`
	Word           string   `json:"word"`
	Translation    string   `json:"translation,omitempty"`
	Examples       []string `json:"examples,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	NotesHTML      string   `json:"notes_html,omitempty"`
	State          string   `json:"state"`
	Tier           int      `json:"tier"`
	IntervalDays   int      `json:"interval_days"`
	SuccessStreak  int      `json:"success_streak"`
	Accuracy       float64  `json:"accuracy"`
	TotalAttempts  float64  `json:"total_attempts"`
	NextReviewDate string   `json:"next_review_date,omitempty"`
	Due            bool     `json:"due"`
	RowStatus      string   `json:"row_status"`
	CreatedTs      int64    `json:"created_ts"`
	UpdatedTs      int64    `json:"updated_ts"`
}

// CreateCardRequest is the body for card creation.
type CreateCardRequest struct {
	Word        string   `json:"word"`
	Translation string   `json:"translation"`
	Examples    []string `json:"examples"`
	Notes       string   `json:"notes"`
}

// UpdateCardRequest carries a partial update. Absent fields stay unchanged.
type UpdateCardRequest struct {
	Word        *string   `json:"word"`
	Translation *string   `json:"translation"`
	Examples    *[]string `json:"examples"`
	Notes       *string   `json:"notes"`
	RowStatus   *string   `json:"row_status"`
}

// ListCardsResponse is the paged card listing.
type ListCardsResponse struct {
	Cards []*Card `json:"cards"`
	Total int     `json:"total"`
}

// ListCards returns cards with optional filtering and paging.
//
// GET /api/v1/cards?q=&filter=&row_status=&limit=&offset=
func (s *APIV1Service) ListCards(c echo.Context) error {
	ctx := c.Request().Context()

	rowStatus := store.Normal
	if raw := c.QueryParam("row_status"); raw != "" {
		parsed, err := parseRowStatus(raw)
		if err != nil {
			return errJSON(c, apierrors.InvalidArgument(err.Error()))
		}
		rowStatus = parsed
	}
	find := &store.FindCard{RowStatus: &rowStatus}
	if q := c.QueryParam("q"); q != "" {
		find.WordLike = &q
	}

	limit, err := intQueryParam(c, "limit", defaultPageSize)
	if err != nil {
		return errJSON(c, apierrors.InvalidArgument(err.Error()))
	}
	offset, err := intQueryParam(c, "offset", 0)
	if err != nil {
		return errJSON(c, apierrors.InvalidArgument(err.Error()))
	}

	var prg cel.Program
	if expr := strings.TrimSpace(c.QueryParam("filter")); expr != "" {
		prg, err = s.filter.compile(expr)
		if err != nil {
			return errJSON(c, apierrors.InvalidArgumentf("invalid filter: %v", err))
		}
	}

	// Filter expressions run over scheduling fields the database does not
	// index, so listings fetch the deck and page in memory. A personal deck
	// stays small enough for that.
	cards, err := s.Store.ListCards(ctx, find)
	if err != nil {
		logError(ctx, "failed to list cards", err)
		return errJSON(c, apierrors.Internal("failed to list cards", err))
	}
	statsByID, err := s.statsForCards(ctx, cards)
	if err != nil {
		logError(ctx, "failed to load card stats", err)
		return errJSON(c, apierrors.Internal("failed to load card stats", err))
	}

	now := time.Now().In(s.loc)
	matched := make([]*Card, 0, len(cards))
	for _, card := range cards {
		reviewStats := statsByID[card.ID]
		due := s.engine.IsDue(reviewStats, now)
		if prg != nil {
			ok, err := s.filter.matches(prg, card, reviewStats, due)
			if err != nil {
				return errJSON(c, apierrors.InvalidArgumentf("failed to evaluate filter: %v", err))
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, s.cardFromStore(card, reviewStats, due))
	}

	total := len(matched)
	page := matched
	if offset >= len(page) {
		page = []*Card{}
	} else {
		page = page[offset:]
	}
	if len(page) > limit {
		page = page[:limit]
	}
	return c.JSON(http.StatusOK, &ListCardsResponse{Cards: page, Total: total})
}

// CreateCard creates a card and its fresh scheduling record.
//
// POST /api/v1/cards
func (s *APIV1Service) CreateCard(c echo.Context) error {
	ctx := c.Request().Context()

	req := &CreateCardRequest{}
	if err := c.Bind(req); err != nil {
		return errJSON(c, apierrors.InvalidArgument("malformed request body"))
	}
	req.Word = strings.TrimSpace(req.Word)
	if req.Word == "" {
		return errJSON(c, apierrors.InvalidArgument("word is required"))
	}

	// The same word twice is almost always a mistake in a personal deck.
	// LIKE folds case differently across drivers, so the check scans the
	// active deck instead.
	normal := store.Normal
	existing, err := s.Store.ListCards(ctx, &store.FindCard{RowStatus: &normal})
	if err != nil {
		logError(ctx, "failed to check for duplicate card", err)
		return errJSON(c, apierrors.Internal("failed to check for duplicate card", err))
	}
	for _, other := range existing {
		if strings.EqualFold(other.Word, req.Word) {
			return errJSON(c, apierrors.AlreadyExists(fmt.Sprintf("card for %q already exists", other.Word)))
		}
	}

	card := &store.Card{
		UID:         shortuuid.New(),
		Word:        req.Word,
		Translation: strings.TrimSpace(req.Translation),
		Notes:       req.Notes,
	}
	if len(req.Examples) > 0 {
		if err := card.SetExampleList(req.Examples); err != nil {
			return errJSON(c, apierrors.InvalidArgument("malformed examples"))
		}
	}

	created, err := s.Store.CreateCard(ctx, card)
	if err != nil {
		logError(ctx, "failed to create card", err)
		return errJSON(c, apierrors.Internal("failed to create card", err))
	}

	// The stats row makes the card visible to the due queue right away.
	freshStats := srs.NewReviewStats()
	row, err := store.NewCardStats(created.ID, freshStats)
	if err == nil {
		_, err = s.Store.UpsertCardStats(ctx, row)
	}
	if err != nil {
		logError(ctx, "failed to create stats row for new card", err)
	}

	return c.JSON(http.StatusOK, s.cardFromStore(created, freshStats, true))
}

// GetCard returns one card with its notes rendered to HTML.
//
// GET /api/v1/cards/:uid
func (s *APIV1Service) GetCard(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	card, err := s.Store.GetCard(ctx, &store.FindCard{UID: &uid})
	if err != nil {
		logError(ctx, "failed to get card", err)
		return errJSON(c, apierrors.Internal("failed to get card", err))
	}
	if card == nil {
		return errJSON(c, apierrors.NotFound("card not found"))
	}

	reviewStats := s.statsForCard(ctx, card.ID)
	apiCard := s.cardFromStore(card, reviewStats, s.engine.IsDue(reviewStats, time.Now().In(s.loc)))
	if card.Notes != "" {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(card.Notes), &buf); err != nil {
			logError(ctx, "failed to render card notes", err)
		} else {
			apiCard.NotesHTML = buf.String()
		}
	}
	return c.JSON(http.StatusOK, apiCard)
}

// UpdateCard partially updates a card.
//
// PATCH /api/v1/cards/:uid
func (s *APIV1Service) UpdateCard(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	card, err := s.Store.GetCard(ctx, &store.FindCard{UID: &uid})
	if err != nil {
		logError(ctx, "failed to get card", err)
		return errJSON(c, apierrors.Internal("failed to get card", err))
	}
	if card == nil {
		return errJSON(c, apierrors.NotFound("card not found"))
	}

	req := &UpdateCardRequest{}
	if err := c.Bind(req); err != nil {
		return errJSON(c, apierrors.InvalidArgument("malformed request body"))
	}

	update := &store.UpdateCard{
		ID:        card.ID,
		UpdatedTs: pointerOf(time.Now().Unix()),
	}
	if req.Word != nil {
		word := strings.TrimSpace(*req.Word)
		if word == "" {
			return errJSON(c, apierrors.InvalidArgument("word cannot be empty"))
		}
		update.Word = &word
	}
	if req.Translation != nil {
		update.Translation = req.Translation
	}
	if req.Examples != nil {
		scratch := &store.Card{}
		if err := scratch.SetExampleList(*req.Examples); err != nil {
			return errJSON(c, apierrors.InvalidArgument("malformed examples"))
		}
		update.Examples = scratch.Examples
	}
	if req.Notes != nil {
		update.Notes = req.Notes
	}
	if req.RowStatus != nil {
		rowStatus, err := parseRowStatus(*req.RowStatus)
		if err != nil {
			return errJSON(c, apierrors.InvalidArgument(err.Error()))
		}
		update.RowStatus = &rowStatus
	}

	if err := s.Store.UpdateCard(ctx, update); err != nil {
		logError(ctx, "failed to update card", err)
		return errJSON(c, apierrors.Internal("failed to update card", err))
	}

	updated, err := s.Store.GetCard(ctx, &store.FindCard{ID: &card.ID})
	if err != nil || updated == nil {
		logError(ctx, "failed to reload card after update", err)
		return errJSON(c, apierrors.Internal("failed to reload card after update", err))
	}
	reviewStats := s.statsForCard(ctx, updated.ID)
	return c.JSON(http.StatusOK, s.cardFromStore(updated, reviewStats, s.engine.IsDue(reviewStats, time.Now().In(s.loc))))
}

// DeleteCard removes a card together with its scheduling record and review
// history.
//
// DELETE /api/v1/cards/:uid
func (s *APIV1Service) DeleteCard(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	card, err := s.Store.GetCard(ctx, &store.FindCard{UID: &uid})
	if err != nil {
		logError(ctx, "failed to get card", err)
		return errJSON(c, apierrors.Internal("failed to get card", err))
	}
	if card == nil {
		return errJSON(c, apierrors.NotFound("card not found"))
	}

	if err := s.Store.DeleteCard(ctx, &store.DeleteCard{ID: card.ID}); err != nil {
		logError(ctx, "failed to delete card", err)
		return errJSON(c, apierrors.Internal("failed to delete card", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// cardFromStore converts a store card plus its scheduling record to the API
// shape.
func (s *APIV1Service) cardFromStore(card *store.Card, reviewStats srs.ReviewStats, due bool) *Card {
	classification := srs.Classify(reviewStats)
	apiCard := &Card{
		UID:           card.UID,
		Word:          card.Word,
		Translation:   card.Translation,
		Examples:      card.ExampleList(),
		Notes:         card.Notes,
		State:         string(classification.Label),
		Tier:          classification.Tier,
		IntervalDays:  reviewStats.IntervalDays,
		SuccessStreak: reviewStats.SuccessStreak,
		Accuracy:      reviewStats.Accuracy(),
		TotalAttempts: reviewStats.TotalAttempts,
		Due:           due,
		RowStatus:     card.RowStatus.String(),
		CreatedTs:     card.CreatedTs,
		UpdatedTs:     card.UpdatedTs,
	}
	if reviewStats.NextReviewDate != nil {
		apiCard.NextReviewDate = reviewStats.NextReviewDate.In(s.loc).Format("2006-01-02")
	}
	return apiCard
}

// statsForCards fetches scheduling records for the given cards in one query.
// Cards that were never reviewed fall back to a fresh record.
func (s *APIV1Service) statsForCards(ctx context.Context, cards []*store.Card) (map[int32]srs.ReviewStats, error) {
	result := make(map[int32]srs.ReviewStats, len(cards))
	if len(cards) == 0 {
		return result, nil
	}
	ids := make([]int32, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
		result[card.ID] = srs.NewReviewStats()
	}
	rows, err := s.Store.ListCardStats(ctx, &store.FindCardStats{CardIDs: ids})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		reviewStats, err := row.ToReviewStats()
		if err != nil {
			logError(ctx, "skipping undecodable card stats", err)
			continue
		}
		result[row.CardID] = reviewStats
	}
	return result, nil
}

// statsForCard fetches one card's scheduling record, falling back to a fresh
// one when the card was never reviewed or the record cannot be decoded.
func (s *APIV1Service) statsForCard(ctx context.Context, cardID int32) srs.ReviewStats {
	row, err := s.Store.GetCardStats(ctx, cardID)
	if err != nil {
		logError(ctx, "failed to load card stats", err)
		return srs.NewReviewStats()
	}
	if row == nil {
		return srs.NewReviewStats()
	}
	reviewStats, err := row.ToReviewStats()
	if err != nil {
		logError(ctx, "failed to decode card stats", err)
		return srs.NewReviewStats()
	}
	return reviewStats
}

func parseRowStatus(raw string) (store.RowStatus, error) {
	rowStatus := store.RowStatus(strings.ToUpper(raw))
	if rowStatus != store.Normal && rowStatus != store.Archived {
		return "", fmt.Errorf("unknown row_status %q", raw)
	}
	return rowStatus, nil
}

func intQueryParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return value, nil
}
