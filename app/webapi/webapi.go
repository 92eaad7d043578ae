// Package webapi provides a web API spam check service.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/spam-bayes/lib/spamcheck"
)

//go:generate moq --out mocks/checker.go --pkg mocks --with-resets --skip-ensure . Checker

const authUser = "spam-bayes"

// Server is a web API server.
type Server struct {
	Config
}

// Config defines server parameters
type Config struct {
	Version    string             // version to show in App-Version header
	ListenAddr string             // listen address
	Checker    Checker            // spam checker
	History    *spamcheck.History // recent checks, optional
	AuthPasswd string             // basic auth password for user "spam-bayes", empty disables auth
	RateLimit  float64            // max requests per second per client ip, 0 means default of 50
}

// Checker scores a single message
type Checker interface {
	Check(msg string) (spamcheck.Response, error)
}

// NewServer creates a new web API server.
func NewServer(config Config) *Server {
	if config.RateLimit <= 0 {
		config.RateLimit = 50
	}
	return &Server{Config: config}
}

// Run starts server and accepts requests checking for spam messages.
func (s *Server) Run(ctx context.Context) error {
	if s.AuthPasswd != "" {
		log.Printf("[INFO] basic auth enabled for webapi server")
	} else {
		log.Printf("[WARN] basic auth disabled, access to webapi is not protected")
	}

	srv := &http.Server{Addr: s.ListenAddr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout: 5 * time.Second, WriteTimeout: 30 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown webapi server: %v", err)
		} else {
			log.Printf("[INFO] webapi server stopped")
		}
	}()

	log.Printf("[INFO] start webapi server on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	lmt := tollbooth.NewLimiter(s.RateLimit, nil)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})

	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()), rest.Throttle(1000), rest.AppInfo("spam-bayes", "umputun", s.Version))
	router.Use(tollbooth.HTTPMiddleware(lmt))
	router.Use(rest.SizeLimit(1024 * 1024)) // 1M max request size

	router.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	})

	api := router.Group()
	if s.AuthPasswd != "" {
		api.Use(rest.BasicAuthWithUserPasswd(authUser, s.AuthPasswd))
	}
	api.HandleFunc("POST /check", s.checkHandler)    // check a message for spam
	api.HandleFunc("GET /history", s.historyHandler) // last checks
	return router
}

// checkHandler handles POST /check request.
// it gets message text from request body and returns verdict with both scores.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	req := spamcheck.Request{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "can't decode request", "details": err.Error()})
		log.Printf("[WARN] can't decode request: %v", err)
		return
	}

	resp, err := s.Checker.Check(req.Msg)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't check message", "details": err.Error()})
		log.Printf("[WARN] can't check message %q: %v", req.Msg, err)
		return
	}

	if s.History != nil {
		s.History.Add(resp)
	}
	rest.RenderJSON(w, resp)
}

// historyHandler handles GET /history?limit=N request, returns the most recent checks, oldest first
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		rest.RenderJSON(w, []spamcheck.CheckRecord{})
		return
	}

	limit := s.History.Cap()
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			rest.RenderJSON(w, rest.JSON{"error": "invalid limit", "details": fmt.Sprintf("%q", v)})
			return
		}
		limit = n
	}
	rest.RenderJSON(w, s.History.Recent(limit))
}
