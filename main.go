package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"Trusslab/internal/auth"
	"Trusslab/internal/calc/batch"
	"Trusslab/internal/calc/report"
	"Trusslab/internal/calc/truss"
	"Trusslab/internal/config"
	"Trusslab/internal/designs"
	"Trusslab/internal/repo"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

var wg sync.WaitGroup

func CORS(mux *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func HandleList(mux *mux.Router, db *sql.DB, cfg config.Config) {
	userRepo := repo.NewPostgresUserDB(db)
	designRepo := repo.NewPostgresDesignDB(db)

	authEnv := &auth.Authenv{JWTkey: cfg.TokenKey, Repo: userRepo}
	limits := truss.Limits{MaxNodes: cfg.MaxNodes, MaxIterations: cfg.MaxIterations}

	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	// optimization runs are CPU bound, so they get their own bucket per IP
	solveLimiter := auth.NewIPRateLimiter(rate.Limit(cfg.SolveRateLimit), cfg.SolveRateBurst)

	api := mux.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)

	api.HandleFunc("/login", authEnv.AuthHandler).Methods("POST")
	api.HandleFunc("/register", authEnv.RegisterHandler).Methods("POST")

	secureApi := api.PathPrefix("/user").Subrouter()
	secureApi.Use(authEnv.AuthMiddleware)

	trussH := &truss.Handler{Limits: limits}
	batchH := &batch.Handler{Limits: limits}
	reportH := &report.Handler{Limits: limits}
	designsH := &designs.Handler{Repo: designRepo, Limits: limits}

	secureApi.HandleFunc("/tools/truss/analyze", trussH.Analyze).Methods("POST")
	secureApi.HandleFunc("/tools/truss/closest-node", trussH.ClosestNode).Methods("POST")

	solve := secureApi.PathPrefix("/tools/truss").Subrouter()
	solve.Use(solveLimiter.LimitMiddleware)
	solve.HandleFunc("/optimize", trussH.Optimize).Methods("POST")
	solve.HandleFunc("/batch", batchH.Batch).Methods("POST")
	solve.HandleFunc("/import", batchH.Import).Methods("POST")
	solve.HandleFunc("/report/pdf", reportH.PDF).Methods("POST")
	solve.HandleFunc("/report/xlsx", reportH.XLSX).Methods("POST")
	solve.HandleFunc("/report/chart", reportH.Chart).Methods("POST")

	secureApi.HandleFunc("/designs", designsH.List).Methods("GET")
	secureApi.HandleFunc("/designs", designsH.Save).Methods("POST")
	secureApi.HandleFunc("/designs/{id}", designsH.Get).Methods("GET")
	secureApi.HandleFunc("/designs/{id}", designsH.Delete).Methods("DELETE")

	authFileServer := http.FileServer(http.Dir("./static/auth"))
	mux.PathPrefix("/auth/").
		Handler(authEnv.RedirectIfLoggedIn(http.StripPrefix("/auth", authFileServer)))
	mainFileServer := http.FileServer(http.Dir("./static/main"))
	mux.PathPrefix("/").
		Handler(mainFileServer)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := repo.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("База не отвечает:", err)
	}
	defer db.Close()
	if err := repo.Migrate(ctx, db); err != nil {
		log.Fatal(err)
	}

	mux := mux.NewRouter()
	HandleList(mux, db, cfg)
	handler := CORS(mux)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Starting server on %s (tls: %v)", cfg.Addr, cfg.TLS())
		var err error
		if cfg.TLS() {
			err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, closing active connections")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown: %v", err)
	}
	wg.Wait()
	log.Println("Server stopped")
}
