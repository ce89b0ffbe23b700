package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"buntee/internal/services"
)

type unlockRequest struct {
	Handle string `json:"handle" form:"handle"`
	Size   int    `json:"size" form:"size" binding:"gte=0"`
}

// UnlockScratch runs the follow gate and mounts a fresh card.
func (h *HTTPHandler) UnlockScratch(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.promo.Unlock(req.Handle, req.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type eraseRequest struct {
	Strokes []services.Stroke `json:"strokes" binding:"required,max=512,dive"`
}

// EraseScratch applies a batch of pointer samples to the card.
func (h *HTTPHandler) EraseScratch(c *gin.Context) {
	var req eraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.promo.Scratch(c.Param("id"), req.Strokes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetScratch returns the card state. The prize is only present once revealed.
func (h *HTTPHandler) GetScratch(c *gin.Context) {
	view, err := h.promo.View(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ScratchOverlay serves the current overlay bitmap.
func (h *HTTPHandler) ScratchOverlay(c *gin.Context) {
	buf := new(bytes.Buffer)
	if err := h.promo.Overlay(c.Param("id"), buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// ShareScratch returns the story caption for a revealed card.
func (h *HTTPHandler) ShareScratch(c *gin.Context) {
	title, text, err := h.promo.Share(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": title, "text": text, "url": h.opts.Links.InstagramURL})
}

// ClearScratch drops a card when the widget unmounts.
func (h *HTTPHandler) ClearScratch(c *gin.Context) {
	h.promo.ClearSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}
