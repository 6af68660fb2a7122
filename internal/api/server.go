// 本文件用于 HTTP 服务的组装：路由、中间件与生命周期
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"ai4free/internal/archive"
	"ai4free/internal/config"
	"ai4free/internal/kb"
	"ai4free/internal/kvstore"
	"ai4free/internal/logger"
	"ai4free/internal/metrics"
	"ai4free/internal/models"
	"ai4free/internal/session"
	"ai4free/internal/sysinfo"
	"ai4free/internal/topic"

	_ "ai4free/docs" // 注册 swagger 文档
)

const maxBodyBytes = 5 << 20

// Deps HTTP 服务依赖的组件
type Deps struct {
	Config   *models.Config
	Store    kvstore.Store
	KB       *kb.Service
	Topics   *topic.Service
	Sessions *session.Manager
	Archiver archive.Archiver
	Metrics  *metrics.Collector
	SysInfo  *sysinfo.Collector
}

// Server wraps the HTTP API server.
type Server struct {
	httpServer *http.Server
}

type handler struct {
	cfg      *models.Config
	store    kvstore.Store
	kb       *kb.Service
	topics   *topic.Service
	sessions *session.Manager
	archiver archive.Archiver
	metrics  *metrics.Collector
	sysinfo  *sysinfo.Collector
}

// NewServer builds the HTTP server for the SPA and its JSON API.
func NewServer(deps Deps) *Server {
	srv := &http.Server{
		Addr:         deps.Config.APIBind,
		Handler:      NewRouter(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return &Server{httpServer: srv}
}

// NewRouter 组装路由，测试直接使用返回的 handler
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = &models.Config{}
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewManager(session.Options{
			Passwords:     config.AdminPasswords(cfg),
			MaxAge:        config.SessionMaxAge(cfg),
			CheckInterval: config.SessionCheckInterval(cfg),
			Metrics:       deps.Metrics,
		})
	}
	h := &handler{
		cfg:      cfg,
		store:    deps.Store,
		kb:       deps.KB,
		topics:   deps.Topics,
		sessions: sessions,
		archiver: deps.Archiver,
		metrics:  deps.Metrics,
		sysinfo:  deps.SysInfo,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return withCORS(cfg, next) })

	r.Get("/metrics", h.metricsText)
	if config.BoolValue(cfg.SwaggerEnabled, true) {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/icons", h.icons)

		r.Get("/session", h.sessionStatus)
		r.Post("/session/login", h.login)
		r.Post("/session/logout", h.logout)

		r.Get("/knowledge-bases", h.listKnowledgeBases)
		r.Get("/knowledge-bases/home", h.homeFeed)
		r.Get("/topics", h.listTopics)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Put("/knowledge-bases", h.saveKnowledgeBases)
			r.Post("/knowledge-bases", h.addKnowledgeBase)
			r.Delete("/knowledge-bases", h.clearKnowledgeBases)
			r.Get("/knowledge-bases/stats", h.knowledgeBaseStats)
			r.Get("/knowledge-bases/export", h.exportKnowledgeBases)
			r.Post("/knowledge-bases/import", h.importKnowledgeBases)
			r.Post("/knowledge-bases/archive", h.archiveKnowledgeBases)
			r.Post("/knowledge-bases/reset", h.resetKnowledgeBases)
			r.Put("/knowledge-bases/{id}", h.replaceKnowledgeBase)
			r.Patch("/knowledge-bases/{id}", h.patchKnowledgeBase)
			r.Delete("/knowledge-bases/{id}", h.deleteKnowledgeBase)

			r.Put("/topics", h.saveTopics)
			r.Post("/topics", h.addTopic)
			r.Post("/topics/reset", h.resetTopics)
			r.Put("/topics/{id}", h.replaceTopic)
			r.Delete("/topics/{id}", h.deleteTopic)
			r.Post("/topics/{id}/articles", h.addArticle)
			r.Put("/topics/{id}/articles/{articleId}", h.replaceArticle)
			r.Delete("/topics/{id}/articles/{articleId}", h.deleteArticle)
		})

		r.Get("/knowledge-bases/{id}", h.getKnowledgeBase)
		r.Get("/topics/{id}", h.getTopic)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	})

	static := newStaticHandler(config.StaticRoot(cfg))
	r.Get("/*", static.ServeHTTP)
	r.Head("/*", static.ServeHTTP)
	return r
}

// Start boots the API server asynchronously.
func (s *Server) Start() {
	go func() {
		logger.Info("API 服务监听 %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API 服务异常退出: %v", err)
		}
	}()
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
