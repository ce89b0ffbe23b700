package handlers

import (
	"bytes"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"buntee/internal/models"
	"buntee/internal/services"
	"buntee/internal/store"
)

const principalKey = "principal"

func (h *HTTPHandler) token(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	raw, err := c.Cookie(h.opts.CookieName)
	if err != nil {
		return ""
	}
	return raw
}

// Identify attaches the caller's principal, falling back to Anonymous.
func (h *HTTPHandler) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := store.Anonymous
		if claims, err := h.auth.Verify(h.token(c)); err == nil {
			p = claims.Principal()
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// AuthMiddleware rejects callers without a valid admin token. Browsers asking
// for a page are sent to the login form.
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.auth.Verify(h.token(c))
		if err != nil {
			if c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/html") {
				c.Redirect(http.StatusSeeOther, "/admin/login")
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please sign in."})
			return
		}
		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

func principal(c *gin.Context) store.Principal {
	if p, ok := c.Get(principalKey); ok {
		if pr, ok := p.(store.Principal); ok {
			return pr
		}
	}
	return store.Anonymous
}

// ShowLogin renders the admin sign-in form.
func (h *HTTPHandler) ShowLogin(c *gin.Context) {
	h.renderPage(c, gin.H{"title": "Admin Login"}, "login.html")
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Login exchanges credentials for a session cookie.
func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required."})
		return
	}
	token, claims, err := h.auth.SignIn(req.Email, req.Password)
	if err != nil {
		logger.Warningf("admin: failed sign-in for %q from %s", req.Email, c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.opts.CookieName, token, int(h.opts.TokenTTL.Seconds()), "/", "", h.opts.SecureCookie, true)
	logger.Infof("admin: %s signed in", claims.Email)
	c.JSON(http.StatusOK, gin.H{"email": claims.Email, "token": token})
}

// Logout clears the session cookie.
func (h *HTTPHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.opts.CookieName, "", -1, "/", "", h.opts.SecureCookie, true)
	c.Status(http.StatusNoContent)
}

// ShowDashboard renders the admin panel.
func (h *HTTPHandler) ShowDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)
	settings, err := h.admin.Settings(ctx, p)
	if err != nil {
		respondError(c, err)
		return
	}
	menu, err := h.admin.Menu(ctx, p)
	if err != nil {
		respondError(c, err)
		return
	}
	h.renderPage(c, gin.H{
		"title":    "Buntee Admin",
		"Email":    p.Email,
		"Settings": settings,
		"Menu":     menu,
		"Collections": []string{
			models.CollectionPreBookings,
			models.CollectionEventOrders,
			models.CollectionFeedbacks,
		},
	}, "admin.html")
}

// SaveSettings stores the teaser text.
func (h *HTTPHandler) SaveSettings(c *gin.Context) {
	var st models.Settings
	if err := c.ShouldBind(&st); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.admin.SaveSettings(c.Request.Context(), principal(c), st); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// AddMenuItem creates a menu entry.
func (h *HTTPHandler) AddMenuItem(c *gin.Context) {
	var it models.MenuItem
	if err := c.ShouldBind(&it); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.admin.AddMenuItem(c.Request.Context(), principal(c), it)
	if err != nil {
		respondError(c, err)
		return
	}
	it.ID = id
	c.JSON(http.StatusCreated, it)
}

// UpdateMenuItem replaces a menu entry.
func (h *HTTPHandler) UpdateMenuItem(c *gin.Context) {
	var it models.MenuItem
	if err := c.ShouldBind(&it); err != nil {
		badRequest(c, err)
		return
	}
	it.ID = c.Param("id")
	if err := h.admin.UpdateMenuItem(c.Request.Context(), principal(c), it.ID, it); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// DeleteMenuItem removes a menu entry.
func (h *HTTPHandler) DeleteMenuItem(c *gin.Context) {
	if err := h.admin.DeleteMenuItem(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recordsJSON flattens records into objects carrying their id.
func recordsJSON(recs []store.Record) []gin.H {
	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		row := gin.H{"id": r.ID}
		for k, v := range r.Data {
			row[k] = v
		}
		out = append(out, row)
	}
	return out
}

// ListCollection returns a submission list, newest first.
func (h *HTTPHandler) ListCollection(c *gin.Context) {
	recs, err := h.admin.Records(c.Request.Context(), principal(c), c.Param("collection"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recordsJSON(recs)})
}

// StreamCollection pushes a submission list on every change. A caller without
// access gets a single "permission-error" event.
func (h *HTTPHandler) StreamCollection(c *gin.Context) {
	events := newEventQueue()
	unsub, err := h.admin.Subscribe(c.Request.Context(), principal(c), c.Param("collection"), func(snap store.Snapshot) {
		if snap.Err != nil {
			events.push(sseError(snap.Err))
			return
		}
		events.push(sseEvent{name: "records", data: gin.H{"records": recordsJSON(snap.Records)}})
	})
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsub()
	h.stream(c, events)
}

// ExportCollection downloads a submission list as CSV or XLSX.
func (h *HTTPHandler) ExportCollection(c *gin.Context) {
	file := c.Param("file")
	ext := path.Ext(file)
	collection := strings.TrimSuffix(file, ext)

	recs, err := h.admin.Records(c.Request.Context(), principal(c), collection)
	if err != nil {
		respondError(c, err)
		return
	}
	table, err := services.BuildTable(collection, recs)
	if err != nil {
		respondError(c, err)
		return
	}

	buf := new(bytes.Buffer)
	var contentType string
	switch ext {
	case ".csv":
		contentType = "text/csv; charset=utf-8"
		err = services.WriteCSV(buf, table)
	case ".xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = services.WriteXLSX(buf, table)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported export format"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment;filename=buntee_"+file)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
