package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"buntee/internal/config"
	"buntee/internal/genai"
	"buntee/internal/handlers"
	"buntee/internal/scratch"
	"buntee/internal/services"
	"buntee/internal/store"
)

//go:embed all:templates
var templateFS embed.FS

//go:embed all:assets
var assetsFS embed.FS

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		hashPassword(os.Args[2:])
		return
	}

	cfg, err := config.Load(".", "/app")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logFile io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logFile = f
	}
	defer logger.Init("buntee", cfg.Verbose, false, logFile).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Open the document store
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer db.Close()
	logger.Infof("Using %s store", cfg.Store.Driver)

	// 2. Initialize the services
	selector, err := services.NewSelector(cfg.Promo.Catalog, nil)
	if err != nil {
		logger.Fatalf("Invalid prize catalog: %v", err)
	}
	machine := &services.PromoMachine{
		Selector: selector,
		Surface: scratch.Options{
			RadiusDivisor: cfg.Promo.RadiusDivisor,
			GridPitch:     cfg.Promo.GridPitch,
			Threshold:     cfg.Promo.Threshold,
			Prompt:        cfg.Promo.Prompt,
		},
		DefaultSize:  cfg.Promo.DefaultSize,
		MaxSize:      cfg.Promo.MaxSize,
		HandleMinLen: cfg.Promo.HandleMinLen,
	}
	promoService := services.NewPromoService(machine, services.PromoOptions{
		SessionTTL:  cfg.Promo.SessionTTL,
		IdleTTL:     cfg.Promo.IdleTTL,
		MaxSessions: cfg.Promo.MaxSessions,
		FollowURL:   cfg.Promo.InstagramURL,
		BrandTag:    cfg.Promo.InstagramHandle,
	})

	var generator services.TextGenerator
	if cfg.GenAI.APIKey != "" {
		generator = genai.NewClient(cfg.GenAI.Endpoint, cfg.GenAI.APIKey, cfg.GenAI.Timeout)
	} else {
		logger.Warning("No genai.api_key configured, serving the fallback wisdom")
	}

	// 3. Load HTML templates from the embedded filesystem.
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		logger.Fatalf("Failed to parse templates: %v", err)
	}

	// 4. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(
		services.NewStorefrontService(db),
		promoService,
		services.NewAdminService(db),
		services.NewAuthService(cfg.Auth),
		services.NewWisdomService(generator, cfg.GenAI),
		templates,
		handlers.Options{
			Links: handlers.Links{
				InstagramURL:    cfg.Promo.InstagramURL,
				InstagramHandle: cfg.Promo.InstagramHandle,
				InstagramDM:     cfg.Contacts.InstagramDM,
			},
			CookieName:   cfg.Auth.CookieName,
			TokenTTL:     cfg.Auth.TokenTTL,
			SecureCookie: strings.HasPrefix(cfg.BaseURL, "https://"),
		},
	)

	// 5. Set up the Gin router
	gin.SetMode(cfg.GinMode)
	r := gin.Default()

	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		logger.Fatalf("Failed to create assets sub-filesystem: %v", err)
	}
	r.StaticFS("/assets", http.FS(assetsSubFS))

	// 6. Register public routes, then the admin routes behind the auth middleware
	httpHandler.RegisterPublicRoutes(r)
	adminRoutes := r.Group("/admin")
	adminRoutes.Use(httpHandler.AuthMiddleware())
	httpHandler.RegisterAdminRoutes(adminRoutes)

	// 7. Start the background janitor to clean up inactive scratch sessions
	go promoService.RunJanitor(ctx, cfg.Promo.JanitorEvery)

	// 8. Run the server
	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown: %v", err)
		}
	}()

	logger.Infof("Server starting on %s", cfg.BaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Failed to run server: %v", err)
	}
	logger.Info("Server stopped")
}

// hashPassword prints a bcrypt hash for auth.admins[].password_hash.
func hashPassword(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: buntee hash-password <password>")
		os.Exit(2)
	}
	hash, err := services.HashPassword(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
