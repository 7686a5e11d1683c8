package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/ChlorophyllA/skin2/internal/config"
	"github.com/ChlorophyllA/skin2/internal/logger"
	"github.com/ChlorophyllA/skin2/internal/observability"
	"github.com/ChlorophyllA/skin2/pkg/channels"
	"github.com/ChlorophyllA/skin2/pkg/derm"
	"github.com/ChlorophyllA/skin2/pkg/hospital"
	"github.com/ChlorophyllA/skin2/pkg/reply"
	"github.com/ChlorophyllA/skin2/pkg/session"
	"github.com/ChlorophyllA/skin2/pkg/web"
	"github.com/rs/zerolog"
)

// Channel names registered with the dispatcher
const (
	ChatChannel      = "web"
	WebSocketChannel = "ws"
)

// Options are the process-level settings that do not live in the config file
type Options struct {
	// ConfigPath enables hot reload when set
	ConfigPath string
	PIDFile    string
}

// Status describes a running daemon
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
	Sessions  int
}

// Daemon wires the session store, channels, reply engine, databases and
// web server into one service.
type Daemon struct {
	config  *config.Config
	options Options
	logger  *logger.Logger
	log     zerolog.Logger

	store     *session.Store
	registry  *channels.Registry
	chat      *channels.WebChannel
	engine    reply.Engine
	hospitals *hospital.Store
	skin      *derm.Store
	server    *web.Server
	sweeper   *session.Sweeper
	watcher   *config.Watcher
	lifecycle *LifecycleManager

	serveErr chan error

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New builds every component. Nothing listens until Start.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	observability.EnsureRegistered()

	d := &Daemon{
		config:   cfg,
		options:  opts,
		logger:   log,
		log:      log.Component("daemon"),
		serveErr: make(chan error, 1),
	}

	if err := d.initializeConversation(); err != nil {
		return nil, fmt.Errorf("failed to initialize conversation: %w", err)
	}

	if err := d.initializeData(); err != nil {
		d.closeData()
		return nil, fmt.Errorf("failed to initialize data stores: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.closeData()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

func (d *Daemon) initializeConversation() error {
	engine, err := reply.NewEngine(d.config.Model)
	if err != nil {
		return err
	}
	d.engine = engine
	d.store = session.NewStore()
	d.registry = channels.NewRegistry()

	for _, name := range []string{ChatChannel, WebSocketChannel} {
		ch, err := channels.NewWebChannel(channels.WebChannelConfig{
			Name:           name,
			HistoryLimit:   d.config.Chat.HistoryLimit,
			ReplyTimeout:   d.config.Chat.ReplyTimeout,
			StrictOrdering: d.config.Chat.StrictOrdering,
		}, d.store, engine, d.logger.GetZerolog())
		if err != nil {
			return fmt.Errorf("failed to create %s channel: %w", name, err)
		}
		if err := d.registry.Register(ch); err != nil {
			return err
		}
		if name == ChatChannel {
			d.chat = ch
		}
	}

	d.log.Info().
		Str("model", d.config.Model.Type).
		Int("history_limit", d.config.Chat.HistoryLimit).
		Bool("strict_ordering", d.config.Chat.StrictOrdering).
		Msg("Conversation channels initialized")

	return nil
}

// initializeData opens the hospital directory and skin encyclopedia. A
// missing database leaves its routes unmounted instead of failing startup.
func (d *Daemon) initializeData() error {
	ctx := context.Background()

	hospitals, err := hospital.Open(d.config.Data.HospitalDB, d.logger.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to open hospital database: %w", err)
	}

	ready, err := hospitals.Ready(ctx)
	if err != nil {
		hospitals.Close()
		return fmt.Errorf("failed to inspect hospital database: %w", err)
	}
	if !ready && d.config.Data.HospitalSource != "" {
		if err := ImportHospitals(ctx, hospitals, d.config.Data.HospitalSource); err != nil {
			hospitals.Close()
			return err
		}
		ready = true
	}
	if ready {
		d.hospitals = hospitals
	} else {
		hospitals.Close()
		d.log.Warn().
			Str("path", d.config.Data.HospitalDB).
			Msg("Hospital directory is empty, hospital routes disabled")
	}

	if _, err := os.Stat(d.config.Data.SkinDB); err != nil {
		d.log.Warn().
			Err(err).
			Str("path", d.config.Data.SkinDB).
			Msg("Skin disease database unavailable, encyclopedia routes disabled")
		return nil
	}
	skin, err := derm.Open(d.config.Data.SkinDB, d.logger.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to open skin database: %w", err)
	}
	d.skin = skin

	return nil
}

func (d *Daemon) initializeServices() error {
	deps := web.Deps{
		Dispatcher:    d.registry,
		Conversations: d.chat,
		Logger:        d.logger.GetZerolog(),
	}
	// typed nils must not reach the interface fields
	if d.hospitals != nil {
		deps.Hospitals = d.hospitals
	}
	if d.skin != nil {
		deps.Skin = d.skin
	}

	srv := d.config.Server
	server, err := web.NewServer(web.Options{
		Host:              srv.Host,
		Port:              srv.Port,
		CookieName:        srv.CookieName,
		CookieSecure:      srv.CookieSecure,
		RateLimitPerMin:   srv.RateLimitPerMin,
		MaxConcurrent:     srv.MaxConcurrent,
		ShutdownTimeout:   srv.ShutdownTimeout,
		ReadHeaderTimeout: srv.ReadHeaderTimeout,
		WebSocketEnabled:  srv.WebSocketEnabled,
		AllowedWSOrigins:  srv.AllowedWSOrigins,
		MetricsEnabled:    d.config.Metrics.Enabled,
		MetricsPath:       d.config.Metrics.Path,
		ChatChannel:       ChatChannel,
		WebSocketChannel:  WebSocketChannel,
	}, deps)
	if err != nil {
		return err
	}
	d.server = server

	if d.config.Chat.SessionIdleTTL > 0 {
		sweeper, err := session.NewSweeper(d.store, d.config.Chat.SessionIdleTTL, d.config.Chat.SweepSchedule, d.logger.GetZerolog())
		if err != nil {
			return fmt.Errorf("failed to create session sweeper: %w", err)
		}
		d.sweeper = sweeper
	}

	if d.options.ConfigPath != "" {
		watcher, err := config.NewWatcher(config.NewLoader(d.options.ConfigPath), d.applyConfig)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		d.watcher = watcher
	}

	if d.options.PIDFile != "" {
		d.lifecycle = NewLifecycleManager(d.options.PIDFile, d.logger.GetZerolog())
	}

	return nil
}

// applyConfig takes what can change at runtime from a reloaded config.
// Everything else needs a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	previous := d.config
	d.config = cfg
	d.mu.Unlock()

	if cfg.Logging.Level != previous.Logging.Level {
		if err := d.logger.SetLevel(cfg.Logging.Level); err != nil {
			d.log.Warn().Err(err).Msg("Failed to apply log level")
		} else {
			d.log.Info().Str("level", cfg.Logging.Level).Msg("Log level updated")
		}
	}

	if !reflect.DeepEqual(cfg.Server, previous.Server) ||
		cfg.Model != previous.Model ||
		cfg.Data != previous.Data ||
		cfg.Chat != previous.Chat {
		d.log.Warn().Msg("Server, chat, model or data settings changed; restart to apply")
	}
}

// Start starts every service. The web server runs in the background;
// its failure is reported by Wait.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	addr := d.config.Addr()
	d.mu.Unlock()

	d.log.Info().Msg("Starting skin2 daemon")

	if d.lifecycle != nil {
		if err := d.lifecycle.Start(); err != nil {
			return fmt.Errorf("failed to start lifecycle manager: %w", err)
		}
	}

	if err := d.registry.StartAll(context.Background()); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}
	d.log.Info().Strs("channels", d.registry.Names()).Msg("Channels started")

	if d.sweeper != nil {
		if err := d.sweeper.Start(); err != nil {
			return fmt.Errorf("failed to start session sweeper: %w", err)
		}
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.log.Warn().Err(err).Msg("Failed to start config watcher, hot reload disabled")
			d.watcher = nil
		}
	}

	go func() {
		if err := d.server.Start(); err != nil {
			d.serveErr <- err
		}
	}()

	d.log.Info().Str("addr", addr).Msg("Daemon started")
	return nil
}

// Stop shuts services down in reverse order
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	timeout := d.config.Server.ShutdownTimeout
	d.mu.Unlock()

	d.log.Info().Msg("Stopping skin2 daemon")

	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()
	if err := d.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := d.registry.StopAll(context.Background()); err != nil {
		d.log.Error().Err(err).Msg("Failed to stop channels")
	}

	if d.sweeper != nil {
		if err := d.sweeper.Stop(); err != nil {
			d.log.Error().Err(err).Msg("Failed to stop session sweeper")
		}
	}

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.log.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	d.closeData()

	if d.lifecycle != nil {
		if err := d.lifecycle.Stop(); err != nil {
			d.log.Error().Err(err).Msg("Failed to stop lifecycle manager")
		}
	}

	d.log.Info().Msg("Daemon stopped")
	return errors.Join(errs...)
}

func (d *Daemon) closeData() {
	if d.hospitals != nil {
		if err := d.hospitals.Close(); err != nil {
			d.log.Error().Err(err).Msg("Failed to close hospital database")
		}
	}
	if d.skin != nil {
		if err := d.skin.Close(); err != nil {
			d.log.Error().Err(err).Msg("Failed to close skin database")
		}
	}
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.store.Len(),
	}
	if d.running {
		status.StartTime = d.startTime
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

// Wait blocks until SIGINT/SIGTERM or a web server failure, then stops
// the daemon.
func (d *Daemon) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		d.log.Info().Str("signal", sig.String()).Msg("Received signal")
	case serveErr = <-d.serveErr:
		d.log.Error().Err(serveErr).Msg("Web server failed")
	}

	if err := d.Stop(); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// GetConfig returns the current configuration
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// GetStore returns the session store
func (d *Daemon) GetStore() *session.Store {
	return d.store
}

// GetRegistry returns the channel registry
func (d *Daemon) GetRegistry() *channels.Registry {
	return d.registry
}

// GetServer returns the web server
func (d *Daemon) GetServer() *web.Server {
	return d.server
}
