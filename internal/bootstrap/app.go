package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/ai"
	openai "cvbuilder-backend/internal/ai/openai"
	googleauth "cvbuilder-backend/internal/auth"
	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor"
	"cvbuilder-backend/internal/notify"
	"cvbuilder-backend/internal/queue"
	"cvbuilder-backend/internal/shared/config"
	"cvbuilder-backend/internal/shared/server"
	"cvbuilder-backend/internal/shared/storage/db"
	"cvbuilder-backend/internal/shared/storage/object"
	localstore "cvbuilder-backend/internal/shared/storage/object/local"
	s3store "cvbuilder-backend/internal/shared/storage/object/s3"
	"cvbuilder-backend/internal/usage"
	"cvbuilder-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	DocsRepo  docs.Repo
	UsersRepo users.Repo

	DocsService  *docs.Service
	UsageService *usage.Service
	UsersService *users.Service
	AIClient     ai.Client

	Registry *editor.Registry
	Reaper   *editor.Reaper
	Inbox    *notify.MemoryNotifier
	Notifier notify.Notifier

	DocsHandler   *docs.Handler
	EditorHandler *editor.Handler
	UsageHandler  *usage.Handler
	AIHandler     *ai.Handler
	UsersHandler  *users.Handler
	GoogleAuth    *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	localDir := ""
	if cfg.ObjectStoreType == "local" {
		localDir = cfg.LocalStoreDir
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		DocumentHandler: app.DocsHandler,
		EditorHandler:   app.EditorHandler,
		UsageHandler:    app.UsageHandler,
		AIHandler:       app.AIHandler,
		UserHandler:     app.UsersHandler,
		GoogleAuth:      app.GoogleAuth,
		LocalFilesDir:   localDir,
	})

	return app, nil
}

// StartReaper begins the idle-session sweep; callers stop it on shutdown.
func (a *App) StartReaper() {
	if a.Reaper == nil {
		return
	}
	if err := a.Reaper.Start(); err != nil {
		log.Printf("bootstrap: reaper start failed: %v", err)
	}
}

// Shutdown stops background work and flushes open sessions.
func (a *App) Shutdown() {
	if a.Reaper != nil {
		a.Reaper.Stop()
	}
	if a.Registry != nil {
		a.Registry.Reap()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(ctx context.Context, app *App) error {
	var docRepo docs.Repo
	var userRepo users.Repo
	if app.DB != nil {
		docRepo = &docs.PGRepo{DB: app.DB}
		userRepo = users.NewPGRepo(app.DB)
	} else {
		docRepo = docs.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	docSvc := &docs.Service{
		Store:        app.Store,
		Repo:         docRepo,
		Cleanup:      app.Queue,
		StoreBaseURL: strings.TrimRight(app.Store.URL(""), "/"),
	}

	var usageSvc *usage.Service
	if app.DB != nil {
		usageSvc = usage.NewPostgresService(usage.NewPGStore(app.DB), docRepo)
	} else {
		usageSvc = usage.NewService(docRepo)
	}

	aiClient := ai.Client(ai.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" && strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			return err
		}
		aiClient = openaiClient
	}

	inbox := notify.NewMemoryNotifier()
	notifier := notify.Fanout{inbox}
	if strings.TrimSpace(app.Config.RedisURL) != "" {
		rdb, err := notify.NewRedisClient(ctx, app.Config.RedisURL)
		if err != nil {
			log.Printf("bootstrap: redis connect failed; notifications stay in-process: %v", err)
		} else {
			notifier = append(notifier, notify.NewRedisNotifier(rdb))
		}
	}

	registry := editor.NewRegistry(app.Config.SessionIdleTTL, nil)
	reaper := editor.NewReaper(registry, int(app.Config.SessionReapInterval/time.Minute))

	userSvc := users.NewService(userRepo)
	googleAuthSvc := googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	editorHandler := editor.NewHandler(registry, docSvc, usageSvc, notifier, inbox)
	if app.Config.AutosaveQuietMillis > 0 {
		editorHandler.QuietWindow = time.Duration(app.Config.AutosaveQuietMillis) * time.Millisecond
	}

	app.DocsRepo = docRepo
	app.UsersRepo = userRepo
	app.DocsService = docSvc
	app.UsageService = usageSvc
	app.UsersService = userSvc
	app.AIClient = aiClient
	app.Registry = registry
	app.Reaper = reaper
	app.Inbox = inbox
	app.Notifier = notifier
	app.DocsHandler = docs.NewHandler(docSvc)
	app.EditorHandler = editorHandler
	app.UsageHandler = usage.NewHandler(usageSvc)
	app.AIHandler = ai.NewHandler(aiClient, usageSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleAuthSvc

	return nil
}
