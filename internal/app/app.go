// Package app wires configuration, transport, storage drivers and services
// into one container for the command layer.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/backend/memory"
	"github.com/studyhub/studyfeed/pkg/backend/rest"
	"github.com/studyhub/studyfeed/pkg/backend/sqlite"
	"github.com/studyhub/studyfeed/pkg/blob"
	"github.com/studyhub/studyfeed/pkg/client"
	"github.com/studyhub/studyfeed/pkg/config"
	"github.com/studyhub/studyfeed/pkg/credentials"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/realtime"
	"github.com/studyhub/studyfeed/pkg/render"
	"github.com/studyhub/studyfeed/pkg/service"
)

// Backend drivers.
const (
	DriverREST   = "rest"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options adjust construction for one command run.
type Options struct {
	// Offline forces the sqlite driver and local blob storage.
	Offline bool
	// FeedView receives feed updates; nil writes cards to stdout.
	FeedView service.FeedView
	// Notifier receives toasts; nil prints them with pkg/output.
	Notifier service.Notifier
}

// App holds every dependency of a command run.
type App struct {
	HTTP     *resty.Client
	Live     *realtime.Client
	Gateway  *backend.Gateway
	Local    localstore.Store
	Session  *credentials.Session
	Renderer *render.Renderer
	Resolver render.AnswerResolver

	Interactions  *service.InteractionStore
	Drafts        *service.DraftStore
	Feed          *service.FeedService
	Creation      *service.CreationService
	Notifications *service.NotificationService
	Messages      *service.MessageService
	Search        *service.SearchService
	Profiles      *service.ProfileService
	Study         *service.StudyService
	Settings      *service.SettingsService
	Auth          *service.AuthService

	driver       string
	cleanupFuncs []func() error
	mu           sync.Mutex
}

// Driver is the backend driver in use.
func (a *App) Driver() string { return a.driver }

// Offline reports whether documents live on this machine.
func (a *App) Offline() bool { return a.driver != DriverREST }

func (a *App) onCleanup(fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	a.mu.Lock()
	funcs := a.cleanupFuncs
	a.cleanupFuncs = nil
	a.mu.Unlock()

	var errs []string
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup: %s", strings.Join(errs, "; "))
	}
	return nil
}

// New builds the container from the loaded configuration. config.Init and
// logger.Init must have run.
func New(ctx context.Context, opts Options) (*App, error) {
	a := &App{driver: strings.ToLower(config.GetString("backend.driver"))}
	if opts.Offline {
		a.driver = DriverSQLite
	}

	a.HTTP = client.FromConfig()

	creds, err := credentials.Load()
	if err != nil {
		logger.Warn("Ignoring unreadable credentials", "error", err)
		creds = nil
	}
	if creds != nil && creds.IsValid() && !strings.HasPrefix(creds.AccessToken, service.LocalTokenPrefix) {
		a.HTTP.SetAuthToken(creds.AccessToken)
	}
	a.Session = credentials.NewSession(creds, func() {
		a.HTTP.SetAuthToken("")
		a.HTTP.Header.Del("Authorization")
	})

	docs, err := a.openDocuments(creds)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	localDriver := config.GetString("local.driver")
	local, err := localstore.Open(localDriver, config.GetString("local.path"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	a.Local = local
	a.onCleanup(local.Close)

	a.Gateway = backend.NewGateway(docs, blobs, a.Session)

	if err := a.buildServices(opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Debug("App ready", "driver", a.driver, "storage", config.GetString("storage.driver"), "local", localDriver)
	return a, nil
}

func (a *App) openDocuments(creds *credentials.Credentials) (backend.DocumentStore, error) {
	switch a.driver {
	case "", DriverREST:
		a.driver = DriverREST
		cfg := realtime.DefaultConfig()
		cfg.URL = config.GetString("realtime.url")
		if ms := config.GetInt("realtime.heartbeat_ms"); ms > 0 {
			cfg.HeartbeatIntervalMs = ms
		}
		if ms := config.GetInt("realtime.reconnect_max_ms"); ms > 0 {
			cfg.ReconnectMaxDelayMs = ms
		}
		a.Live = realtime.NewClient(cfg)
		if creds != nil && creds.IsValid() {
			a.Live.SetAuthToken(creds.AccessToken)
		}
		a.onCleanup(a.Live.Disconnect)
		return rest.New(a.HTTP, a.Live), nil
	case DriverSQLite:
		path := config.GetString("backend.sqlite_path")
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		a.onCleanup(store.Close)
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", a.driver)
	}
}

func (a *App) openBlobs(ctx context.Context) (backend.BlobStore, error) {
	cfg := blob.Config{
		Driver:    config.GetString("storage.driver"),
		Endpoint:  config.GetString("storage.endpoint"),
		Bucket:    config.GetString("storage.bucket"),
		AccessKey: config.GetString("storage.access_key"),
		SecretKey: config.GetString("storage.secret_key"),
		UseSSL:    config.GetBool("storage.use_ssl"),
		Region:    config.GetString("storage.region"),
		PublicURL: config.GetString("storage.public_url"),
		LocalDir:  config.GetString("storage.local_dir"),
	}
	// The REST upload endpoint is unreachable without a server.
	if a.Offline() && (cfg.Driver == "" || cfg.Driver == "rest") {
		cfg.Driver = "local"
	}
	store, err := blob.New(ctx, cfg, a.HTTP)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Driver, err)
	}
	return store, nil
}

func (a *App) buildServices(opts Options) error {
	var err error
	a.Interactions, err = service.NewInteractionStore(a.Local, a.Gateway)
	if err != nil {
		return err
	}
	a.Profiles, err = service.NewProfileService(a.Gateway, config.GetInt64("media.max_bytes"))
	if err != nil {
		return err
	}

	a.Settings = service.NewSettingsService(a.Local, a.Profiles)
	theme, err := a.Settings.Theme()
	if err != nil {
		logger.Warn("Using the light theme", "error", err)
		theme = service.ThemeLight
	}
	a.Renderer = render.NewRenderer(render.WithOverlay(a.Interactions), render.WithTheme(theme))

	var registry service.AnswerRegistry
	switch config.GetString("feed.answer_mode") {
	case "remote":
		a.Resolver = render.NewRemoteResolver(a.Gateway)
	default:
		local := render.NewLocalResolver()
		a.Resolver, registry = local, local
	}

	view := opts.FeedView
	if view == nil {
		view = &service.TextFeedView{W: os.Stdout, Renderer: a.Renderer}
	}
	notify := opts.Notifier
	if notify == nil {
		notify = service.ConsoleNotifier{}
	}

	a.Feed = service.NewFeedService(a.Gateway, a.Interactions, registry, view, service.FeedOptions{
		PageSize:        config.GetInt("feed.page_size"),
		ScrollThreshold: config.GetFloat("feed.scroll_threshold"),
		ShareBaseURL:    config.GetString("feed.share_base_url"),
	})
	a.Drafts = service.NewDraftStore(a.Local)
	a.Creation = service.NewCreationService(a.Gateway, a.Drafts, a.Feed, a.Profiles, notify, service.CreationOptions{
		MaxMediaBytes: config.GetInt64("media.max_bytes"),
	})
	a.Notifications = service.NewNotificationService(a.Gateway, config.GetInt("notifications.page_size"))
	a.Messages = service.NewMessageService(a.Gateway, config.GetInt("messages.window"), config.GetInt("messages.history"))
	a.Search = service.NewSearchService(a.Gateway, a.Local, service.SearchOptions{
		Debounce:     config.GetDuration("search.debounce_ms"),
		RecentMax:    config.GetInt("search.recent_max"),
		ResultLimit:  config.GetInt("search.result_limit"),
		DemoFallback: config.GetBool("search.demo_fallback"),
	})
	a.Study = service.NewStudyService(a.Local, a.Gateway)
	a.Auth = service.NewAuthService(a.HTTP)
	return nil
}
