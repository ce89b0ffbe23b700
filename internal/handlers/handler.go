package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/pkg/errors"

	"buntee/internal/services"
	"buntee/internal/store"
)

// Links are the brand's outbound contact points shown on the pages.
type Links struct {
	InstagramURL    string
	InstagramHandle string
	InstagramDM     string
}

// Options configures the HTTP surface.
type Options struct {
	Links        Links
	CookieName   string
	TokenTTL     time.Duration
	SecureCookie bool
}

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	front     *services.StorefrontService
	promo     *services.PromoService
	admin     *services.AdminService
	auth      *services.AuthService
	wisdom    *services.WisdomService
	templates *template.Template
	opts      Options
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(front *services.StorefrontService, promo *services.PromoService, admin *services.AdminService,
	auth *services.AuthService, wisdom *services.WisdomService, templates *template.Template, opts Options) *HTTPHandler {
	if opts.CookieName == "" {
		opts.CookieName = "buntee_admin"
	}
	return &HTTPHandler{
		front:     front,
		promo:     promo,
		admin:     admin,
		auth:      auth,
		wisdom:    wisdom,
		templates: templates,
		opts:      opts,
	}
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	buf := new(bytes.Buffer)
	if err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData); err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	pageData["PageContent"] = template.HTML(buf.String())
	pageData["Links"] = h.opts.Links

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(c.Writer, "layout.html", pageData); err != nil {
		logger.Errorf("Error executing layout template: %v", err)
	}
}

// RegisterPublicRoutes registers the storefront, scratch card and login routes.
func (h *HTTPHandler) RegisterPublicRoutes(router *gin.Engine) {
	router.GET("/", h.ShowIndex)
	router.GET("/healthz", h.Healthz)
	router.GET("/menu", h.GetMenu)
	router.GET("/menu/stream", h.StreamMenu)
	router.POST("/prebook", h.PreBook)
	router.POST("/events", h.SubmitEventOrder)
	router.POST("/feedback", h.SubmitFeedback)

	router.POST("/scratch/unlock", h.UnlockScratch)
	router.GET("/scratch/:id", h.GetScratch)
	router.POST("/scratch/:id/erase", h.EraseScratch)
	router.GET("/scratch/:id/overlay.png", h.ScratchOverlay)
	router.GET("/scratch/:id/share", h.ShareScratch)
	router.DELETE("/scratch/:id", h.ClearScratch)

	router.GET("/admin/login", h.ShowLogin)
	router.POST("/admin/login", h.Login)
	router.POST("/admin/logout", h.Logout)
	// Live lists report a missing sign-in as a stream event rather than a 401.
	router.GET("/admin/stream/:collection", h.Identify(), h.StreamCollection)
}

// RegisterAdminRoutes registers the routes that need a signed-in admin.
func (h *HTTPHandler) RegisterAdminRoutes(group *gin.RouterGroup) {
	group.GET("", h.ShowDashboard)
	group.POST("/settings", h.SaveSettings)
	group.POST("/menu", h.AddMenuItem)
	group.PUT("/menu/:id", h.UpdateMenuItem)
	group.DELETE("/menu/:id", h.DeleteMenuItem)
	group.GET("/export/:file", h.ExportCollection)
	group.GET("/:collection", h.ListCollection)
}

// Healthz reports liveness.
func (h *HTTPHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps a service error onto a status. Infrastructure failures are
// logged and answered with a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrPermissionDenied), errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Missing or insufficient permissions."})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrUnknownCollection):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotRevealed), errors.Is(err, services.ErrNotScratching),
		errors.Is(err, services.ErrAlreadyUnlocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrTooManySessions):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
	}
}

func badRequest(c *gin.Context, err error) {
	logger.Infof("%s %s: bad request: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request."})
}
