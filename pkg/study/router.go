package study

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jgirmay/cardstudy/internal/api"
	"github.com/jgirmay/cardstudy/pkg/scheduler"
)

// Router wires the four study operations (§6), plus the pomodoro counter,
// onto gin handlers. It knows
// nothing about transport framing beyond gin itself — everything that
// touches storage lives in Service.
type Router struct {
	service *Service
}

// NewRouter builds a Router around an already-constructed Service.
func NewRouter(service *Service) *Router {
	return &Router{service: service}
}

// RegisterRoutes mounts the study endpoints under group.
func (r *Router) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/queue", r.getQueue)
	group.POST("/cards/:cardId/reviews", r.submitReview)
	group.GET("/sessions/today", r.getTodaySession)
	group.POST("/sessions/today/end", r.endSession)
	group.POST("/sessions/today/pomodoro", r.recordPomodoro)
}

// userID extracts the opaque user identity from the X-User-ID header that
// stands in for an authentication collaborator this service doesn't own.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		api.RespondWithError(c, api.NewError(api.ErrCodeInvalidRequest, "X-User-ID header is required", http.StatusBadRequest))
		return "", false
	}
	return id, true
}

type queueCardResponse struct {
	Card            Card           `json:"card"`
	IntervalDays    int            `json:"interval_days"`
	Ease            float64        `json:"ease_factor"`
	ReviewCount     int            `json:"review_count"`
	Mastery         string         `json:"mastery_level"`
	IntervalPreview map[int]string `json:"interval_preview"`
}

type queueResponse struct {
	Cards        []queueCardResponse `json:"cards"`
	TotalDue     int                 `json:"total_due"`
	NewCount     int                 `json:"new_count"`
	ReviewCount  int                 `json:"review_count"`
	OverdueCount int                 `json:"overdue_count"`
}

func (r *Router) getQueue(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", 20)
	includeNew := c.DefaultQuery("include_new", "true") != "false"
	newCardsLimit := queryInt(c, "new_cards_limit", 10)

	result, err := r.service.BuildQueue(c.Request.Context(), user, limit, includeNew, newCardsLimit)
	if err != nil {
		api.RespondWithError(c, api.ToAPIError(err))
		return
	}

	resp := queueResponse{
		Cards:        make([]queueCardResponse, 0, len(result.Cards)),
		TotalDue:     result.TotalDue,
		NewCount:     result.NewCount,
		ReviewCount:  result.ReviewCount,
		OverdueCount: result.OverdueCount,
	}
	for _, qc := range result.Cards {
		preview := make(map[int]string, len(qc.IntervalPreview))
		for rating, s := range qc.IntervalPreview {
			preview[int(rating)] = s
		}
		resp.Cards = append(resp.Cards, queueCardResponse{
			Card:            qc.Card,
			IntervalDays:    qc.IntervalDays,
			Ease:            qc.Ease,
			ReviewCount:     qc.ReviewCount,
			Mastery:         string(qc.Mastery),
			IntervalPreview: preview,
		})
	}

	api.RespondWith(c, http.StatusOK, resp)
}

type submitReviewRequest struct {
	Rating           int  `json:"rating" binding:"required"`
	TimeSpentSeconds *int `json:"time_spent_seconds"`
}

type submitReviewResponse struct {
	CardID          string  `json:"card_id"`
	NewIntervalDays int     `json:"new_interval_days"`
	NewEase         float64 `json:"new_ease"`
	NewDueDate      string  `json:"new_due_date"`
	NewMastery      string  `json:"new_mastery"`
	CardsRemaining  int     `json:"cards_remaining"`
}

func (r *Router) submitReview(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	cardID := c.Param("cardId")
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithError(c, api.NewError(api.ErrCodeInvalidRequest, "invalid request body: "+err.Error(), http.StatusBadRequest))
		return
	}

	result, err := r.service.SubmitReview(c.Request.Context(), user, cardID, ratingFromInt(req.Rating), req.TimeSpentSeconds)
	if err != nil {
		api.RespondWithError(c, api.ToAPIError(err))
		return
	}

	api.RespondWith(c, http.StatusOK, submitReviewResponse{
		CardID:          result.CardID,
		NewIntervalDays: result.NewIntervalDays,
		NewEase:         result.NewEase,
		NewDueDate:      formatDate(result.NewDueDate),
		NewMastery:      string(result.NewMastery),
		CardsRemaining:  result.CardsRemaining,
	})
}

func (r *Router) getTodaySession(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	session, err := r.service.GetTodaySession(c.Request.Context(), user)
	if err != nil {
		api.RespondWithError(c, api.ToAPIError(err))
		return
	}
	if session == nil {
		api.RespondWithMessage(c, http.StatusOK, nil, "none")
		return
	}
	api.RespondWith(c, http.StatusOK, session)
}

func (r *Router) endSession(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	session, err := r.service.EndSession(c.Request.Context(), user)
	if err != nil {
		api.RespondWithError(c, api.ToAPIError(err))
		return
	}
	api.RespondWith(c, http.StatusOK, session)
}

func (r *Router) recordPomodoro(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	session, err := r.service.RecordPomodoro(c.Request.Context(), user)
	if err != nil {
		api.RespondWithError(c, api.ToAPIError(err))
		return
	}
	api.RespondWith(c, http.StatusOK, session)
}

// ratingFromInt does not clamp: SubmitReview rejects an out-of-range rating
// with a ValidationError rather than silently coercing it.
func ratingFromInt(v int) scheduler.Rating {
	return scheduler.Rating(v)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
