package main

import (
	"net/http"

	"github.com/mlegall/assohub/internal/auth"
	"github.com/mlegall/assohub/internal/config"
	"github.com/mlegall/assohub/internal/handlers"
	"github.com/mlegall/assohub/internal/messaging"
	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/mindmap"
	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/policy"
	"github.com/mlegall/assohub/internal/services"
	"github.com/mlegall/assohub/internal/sessions"
	"github.com/mlegall/assohub/internal/view"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux *http.ServeMux
	db  *gorm.DB
	log zerolog.Logger
}

// NewApp wires the services and handlers and configures every route.
func NewApp(db *gorm.DB, cfg *config.Config, sessionSvc *sessions.Service, log zerolog.Logger) *App {
	app := &App{mux: http.NewServeMux(), db: db, log: log}

	gate := policy.NewGate(db)
	// Templates show/hide the admin navigation through this callback; the view
	// package stays free of policy types.
	view.SetIsAdminResolver(func(r *http.Request) bool {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			return false
		}
		user, err := gate.LoadUser(uid)
		if err != nil || user == nil {
			return false
		}
		return gate.IsGlobalAdmin(user)
	})

	messagingSvc := messaging.NewService(db, gate)
	mindmapSvc := mindmap.NewService(db, gate)
	mailer := services.NewMailer(cfg.SMTP, log)

	authH := handlers.NewAuthHandler(db, sessionSvc)
	groupH := handlers.NewGroupHandler(db, gate)
	messagingH := handlers.NewMessagingHandler(db, messagingSvc)
	mindmapH := handlers.NewMindMapHandler(db, gate, mindmapSvc)
	membersH := handlers.NewMembersHandler(db, gate, cfg.Uploads.Dir)
	settingsH := handlers.NewSettingsHandler(db, cfg.Uploads.Dir)
	contactH := handlers.NewContactHandler(mailer, log)

	app.setupRoutes(authH, groupH, messagingH, mindmapH, membersH, settingsH, contactH)
	return app
}

// ServeHTTP applies the global middleware chain around the mux.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := middleware.Recover(a.log)(auth.Middleware(middleware.Prefs(a.mux)))
	handler.ServeHTTP(w, r)
}

func (a *App) setupRoutes(
	authH *handlers.AuthHandler,
	groupH *handlers.GroupHandler,
	messagingH *handlers.MessagingHandler,
	mindmapH *handlers.MindMapHandler,
	membersH *handlers.MembersHandler,
	settingsH *handlers.SettingsHandler,
	contactH *handlers.ContactHandler,
) {
	// Public routes.
	a.mux.HandleFunc("GET /{$}", a.indexPage)
	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.health)
	authH.Register(a.mux)
	contactH.Register(a.mux)

	// Authenticated routes: each handler registers on its own mux, wrapped as
	// a group behind requireAuth.
	protected := http.NewServeMux()
	groupH.Register(protected)
	messagingH.Register(protected)
	mindmapH.Register(protected)
	membersH.Register(protected)
	settingsH.Register(protected)
	a.mux.Handle("/", auth.RequireAuth(protected))

	// Static files, uploaded avatars included.
	a.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
}

func (a *App) indexPage(w http.ResponseWriter, r *http.Request) {
	if err := view.Render(w, r, "index.html", nil); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// health answers 200 when the database responds to a trivial query.
func (a *App) health(w http.ResponseWriter, r *http.Request) {
	var one int64
	if err := a.db.Model(&models.Rank{}).Limit(1).Count(&one).Error; err != nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		_ = err
	}
}
