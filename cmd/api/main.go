package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/config"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	appHTTP "github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/handler/http"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/cron"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/database"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/geo"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/jwt"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/oauth"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/sse"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/storage"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/repository/postgresql"
	attendanceService "github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/service/attendance"
	serviceAuth "github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/service/auth"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/service/file"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	tz, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		log.Fatal("Invalid attendance timezone:", err)
	}

	userRepo := postgresql.NewUserRepository(db)
	JWTRepository := postgresql.NewJWTRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	activityEventRepo := postgresql.NewActivityEventRepository(db)
	transactor := postgresql.NewTransactor(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)
	GoogleService := oauth.NewGoogleService(cfg.OAuth2Google.ClientID, cfg.OAuth2Google.ClientSecret, cfg.OAuth2Google.RedirectURL, cfg.OAuth2Google.Scopes)

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.BaseURL)
	if err != nil {
		log.Fatal("Failed to initialize local storage:", err)
	}
	fileService := file.NewFileService(fileStorage)

	hub := sse.NewHub()

	trackers := attendanceService.NewTrackerRegistry(attendanceRepo, time.Now, cfg.Attendance.TickInterval, cfg.Attendance.MirrorInterval)
	trackers.OnSnapshot(func(snap attendance.StatusSnapshot) {
		hub.Publish(snap.UserID, sse.Event{
			UserID: snap.UserID,
			Event:  "attendance.snapshot",
			Data:   snap,
		})
	})

	engine := attendanceService.NewEngine(
		transactor,
		attendanceRepo,
		activityEventRepo,
		fileService,
		hub,
		trackers,
		nil, // positions come from the device; the server has no GPS fallback
		attendanceService.Config{
			Office:         geo.Coordinates{Latitude: cfg.Office.Latitude, Longitude: cfg.Office.Longitude},
			RadiusMeters:   cfg.Office.RadiusMeters,
			Timezone:       tz,
			PersistTimeout: cfg.Attendance.PersistTimeout,
		},
	)

	authService := serviceAuth.NewAuthService(db, userRepo, JWTService, JWTRepository)

	authHandler := appHTTP.NewAuthHandler(JWTService, authService, GoogleService, cfg.App.FrontendURL)
	attendanceHandler := appHTTP.NewAttendanceHandler(engine, JWTService, hub)

	router := appHTTP.NewRouter(JWTService, authHandler, attendanceHandler, cfg.Storage.BasePath)

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(transactor, attendanceRepo, activityEventRepo, engine, tz).Register(scheduler)
	scheduler.Start()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Server running at http://localhost%s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Println("Server shutdown error:", err)
	}

	scheduler.Stop()
	trackers.CloseAll()
}
