package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	// 1) DB
	db, err := OpenDB(cfg)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// 2) Seed (if empty)
	if isEmpty, _ := IsQuestionTableEmpty(db); isEmpty {
		if _, err := os.Stat(cfg.SeedPath); err == nil {
			if err := SeedFromFile(db, cfg.SeedPath); err != nil {
				log.Fatalf("seed: %v", err)
			}
			log.Printf("Seeded questions from %s", cfg.SeedPath)
		} else {
			log.Printf("No seed file at %s; running with empty DB", cfg.SeedPath)
		}
	}

	// 3) Background jobs
	expiry, err := StartExpiryScheduler(db, cfg.ExpirySchedule)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	// 4) Router
	r := NewRouter(db, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Printf("Listening on :%s (SecureCookies=%v, Origins=%v)", cfg.Port, cfg.SecureCookies, cfg.AllowedOrigins)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	<-expiry.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting")
}

// NewRouter wires middleware and every API route.
func NewRouter(db *gorm.DB, cfg *Config) *gin.Engine {
	r := gin.Default()

	// --- CORS: configured origins + any localhost:port ---
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimSpace(o)] = true
	}
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowed[origin] {
				return true
			}
			return strings.HasPrefix(origin, "http://localhost:")
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", learnerHeader},
		ExposeHeaders:    []string{learnerHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api/v1")
	api.Use(EnsureUser(db, cfg.SecureCookies))
	{
		// Learn mode
		api.GET("/questions", ListQuestions(db))
		api.GET("/categories", ListCategories(db))
		api.POST("/learn/answer", LearnAnswer(db))

		// Exam mode
		api.POST("/exams", StartExam(db, cfg))
		api.POST("/exams/:id/answer", ExamAnswer(db))
		api.POST("/exams/:id/finish", FinishExam(db))

		// History & stats
		api.GET("/exams", ListMyExams(db))
		api.GET("/exams/:id", GetMyExam(db))
		api.GET("/stats", Stats(db))

		// Flight computer
		api.POST("/navcomputer/solve", SolveWindTriangle())
		api.GET("/practice/wind", PracticeWind())
		api.POST("/practice/wind/check", CheckPracticeWind(cfg))
	}
	return r
}
