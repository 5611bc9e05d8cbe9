package shell

import (
	"fmt"
	"io"
	"net/http"

	"adsdash/internal/logger"
	"adsdash/internal/services"
	"adsdash/internal/storage"
	"adsdash/pkg/adtypes"
)

// Options carries what InitializeServices cannot build itself.
type Options struct {
	// Config is the configuration service, already bound to the CLI flags.
	Config *services.ConfigurationService
	// Store backs sessions, conversations and view state.
	Store storage.Store
	// Client is used for every backend request. Nil uses a client without timeout whose
	// traffic is captured by the debug transport.
	Client *http.Client
	// Editor overrides the external editor command.
	Editor string
	// Output receives transient status lines. Nil means stdout.
	Output io.Writer
}

// InitializeServices registers every adsdash service on the global registry and
// initializes them in dependency order.
func InitializeServices(opts Options) error {
	if opts.Store == nil {
		return fmt.Errorf("no storage configured")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = services.NewConfigurationService()
	}
	// Everything below needs resolved settings.
	if err := cfg.Initialize(); err != nil {
		return err
	}

	debug := services.NewDebugTransportService()
	client := opts.Client
	if client == nil {
		client = &http.Client{Transport: debug.Transport(nil)}
	}
	auth := services.NewAuthService(cfg.BaseURL(), client, opts.Store)
	api := services.NewAPIService(auth, cfg.Timeout())
	conversations := services.NewConversationService(opts.Store)
	rules := services.NewRuleService(api)
	chat := services.NewChatService(api, conversations, services.NewExperts(), rules, opts.Store)

	registry := services.GetGlobalRegistry()
	for _, service := range []adtypes.Service{
		cfg,
		debug,
		auth,
		api,
		conversations,
		rules,
		chat,
		services.NewThemeService(),
		services.NewPromptColorService(cfg.Prompt(), cfg.Theme()),
		services.NewMarkdownService(cfg.Theme()),
		services.NewEditorService(opts.Editor),
		services.NewTemporalDisplayService(opts.Output),
	} {
		if err := registry.RegisterService(service); err != nil {
			return err
		}
	}

	if err := registry.InitializeAll(); err != nil {
		return err
	}

	logger.Debug("Services initialized", "services", registry.Names(), "api", cfg.BaseURL())
	return nil
}
