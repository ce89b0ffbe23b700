package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"buntee/internal/models"
)

// ShowIndex renders the landing page with the live teaser, menu and wisdom line.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	ctx := c.Request.Context()
	teaser, err := h.front.Teaser(ctx)
	if err != nil {
		logger.Warningf("index: teaser unavailable: %v", err)
	}
	menu, err := h.front.Menu(ctx)
	if err != nil {
		logger.Warningf("index: menu unavailable: %v", err)
	}
	h.renderPage(c, gin.H{
		"title":  "Buntee | Bun Maska",
		"Teaser": teaser,
		"Menu":   menu,
		"Wisdom": h.wisdom.Wisdom(ctx),
	}, "home.html")
}

// GetMenu returns the menu ordered by name.
func (h *HTTPHandler) GetMenu(c *gin.Context) {
	items, err := h.front.Menu(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// StreamMenu pushes the full menu as a "menu" event on every change.
func (h *HTTPHandler) StreamMenu(c *gin.Context) {
	ctx := c.Request.Context()
	events := newEventQueue()
	unsub, err := h.front.SubscribeMenu(ctx, func(items []models.MenuItem, err error) {
		if err != nil {
			events.push(sseError(err))
			return
		}
		events.push(sseEvent{name: "menu", data: gin.H{"items": items}})
	})
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsub()
	h.stream(c, events)
}

type preBookRequest struct {
	Name    string         `json:"name" form:"name"`
	Contact string         `json:"contact" form:"contact"`
	Message string         `json:"message" form:"message"`
	Items   map[string]int `json:"items"`
}

// PreBook stores an express pre-booking.
func (h *HTTPHandler) PreBook(c *gin.Context) {
	var req preBookRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.front.PreBook(c.Request.Context(), models.PreBooking{
		Name:    req.Name,
		Contact: req.Contact,
		Message: req.Message,
		Items:   req.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Your pre-booking is confirmed. See you soon!"})
}

type eventOrderRequest struct {
	Name         string         `json:"name" form:"name"`
	Contact      string         `json:"contact" form:"contact"`
	Address      string         `json:"address" form:"address"`
	Date         string         `json:"date" form:"date"`
	Time         string         `json:"time" form:"time"`
	Type         string         `json:"type" form:"type"`
	CallSchedule string         `json:"callSchedule" form:"callSchedule"`
	Items        map[string]int `json:"items"`
}

// SubmitEventOrder stores a catering inquiry.
func (h *HTTPHandler) SubmitEventOrder(c *gin.Context) {
	var req eventOrderRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.front.SubmitEventOrder(c.Request.Context(), models.EventOrder{
		Name:         req.Name,
		Contact:      req.Contact,
		Address:      req.Address,
		Date:         req.Date,
		Time:         req.Time,
		Type:         req.Type,
		CallSchedule: req.CallSchedule,
		Items:        req.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Event inquiry received. Our founders will contact you!"})
}

type feedbackRequest struct {
	Rating  int    `json:"rating" form:"rating"`
	Comment string `json:"comment" form:"comment"`
	Name    string `json:"name" form:"name"`
}

// SubmitFeedback stores a star rating.
func (h *HTTPHandler) SubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.front.SubmitFeedback(c.Request.Context(), models.Feedback{
		Rating:  req.Rating,
		Comment: req.Comment,
		Name:    req.Name,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Thank you for your buttery feedback!"})
}
