package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/templui/usermap"
	"github.com/templui/usermap/internal/config"
	"github.com/templui/usermap/internal/db"
	"github.com/templui/usermap/internal/mail"
	"github.com/templui/usermap/internal/repository"
	"github.com/templui/usermap/internal/service"
	"github.com/templui/usermap/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	AuthService    *service.AuthService
	UserService    *service.UserService
	EmailService   *service.EmailService
	ContentService *service.ContentService
	Lifecycle      *service.Lifecycle
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(ctx, cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Storage (optional)
	var exportStorage storage.Storage
	if cfg.HasStorage() {
		s3Storage, err := storage.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		exportStorage = s3Storage
	}

	// Mail
	mailer, err := mail.New(mail.Options{
		Provider:     cfg.MailProvider,
		From:         cfg.EmailFrom,
		Timeout:      cfg.MailTimeout,
		ResendAPIKey: cfg.ResendAPIKey,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	// Services
	lifecycle := service.NewLifecycle(userRepository, cfg.DefaultActive)
	emailService := service.NewEmailService(mailer, cfg.AppURL, cfg.AppName)
	authService := service.NewAuthService(userRepository, lifecycle, emailService, service.AuthOptions{
		AppName:       cfg.AppName,
		JWTSecret:     cfg.JWTSecret,
		JWTExpiry:     cfg.JWTExpiry,
		ResetExpiry:   cfg.TokenPasswordResetExpiry,
		BcryptCost:    cfg.BcryptCost,
		IsProduction:  cfg.IsProduction(),
		DefaultActive: cfg.DefaultActive,
	})
	userService := service.NewUserService(userRepository, lifecycle, exportStorage)

	contentService := service.NewContentService(contentFS(cfg))
	err = contentService.LoadPages()
	if err != nil {
		return nil, fmt.Errorf("failed to load content pages: %w", err)
	}

	return &App{
		Cfg:            cfg,
		DB:             database,
		AuthService:    authService,
		UserService:    userService,
		EmailService:   emailService,
		ContentService: contentService,
		Lifecycle:      lifecycle,
	}, nil
}

// contentFS prefers CONTENT_PATH on disk in development (re-read per request)
// and falls back to the pages embedded in the binary.
func contentFS(cfg *config.Config) (fs.FS, bool) {
	if cfg.IsDevelopment() && cfg.ContentPath != "" {
		info, err := os.Stat(cfg.ContentPath)
		if err == nil && info.IsDir() {
			slog.Info("serving content from disk", "path", cfg.ContentPath)
			return os.DirFS(cfg.ContentPath), true
		}
	}

	sub, err := fs.Sub(usermap.ContentFS, "content")
	if err != nil {
		panic(err)
	}
	return sub, false
}

func (a *App) Close() error {
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
