// Command lockd is the daemon entrypoint (component K): it tunes the Go
// runtime for the cgroup it's running in, resolves the runtime directory,
// wires up the module lifecycle engine and every built-in component, and
// blocks on the Event Loop until told to stop.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/lockd/lockd/internal/bus"
	"github.com/lockd/lockd/internal/config"
	"github.com/lockd/lockd/internal/daemonutil"
	"github.com/lockd/lockd/internal/engine"
	"github.com/lockd/lockd/internal/logging"
	"github.com/lockd/lockd/internal/modules"
	"github.com/lockd/lockd/internal/scheduler"
	"github.com/lockd/lockd/internal/session"
	"github.com/lockd/lockd/internal/sleepsignal"
	"github.com/lockd/lockd/internal/socket"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "lockd: automaxprocs: %v\n", err)
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(); err != nil {
		fmt.Fprintf(os.Stderr, "lockd: automemlimit: %v\n", err)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lockd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settingsPath := os.Getenv("LOCKD_SETTINGS")
	if settingsPath == "" {
		if home, err := os.UserConfigDir(); err == nil {
			settingsPath = filepath.Join(home, "lockd", "settings.yaml")
		}
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}

	runtimeDir, err := daemonutil.ResolveRuntimeDir(settings.RuntimeDir)
	if err != nil {
		return err
	}

	log := logging.New(settings)

	pidPath := filepath.Join(runtimeDir, "daemon.pid")
	if err := daemonutil.WritePIDFile(pidPath); err != nil {
		return err
	}
	defer daemonutil.RemovePIDFile(pidPath)

	loop := engine.NewLoop(logging.Component(log, "loop"))
	chain := engine.NewSelectorChain()
	state := &engine.State{}
	reg := engine.NewRegistry(logging.Component(log, "engine"), loop, chain, state)

	sessions := session.New(reg, reg.Get)
	state.Idle = sessions
	reg.SetInvalidator(sessions.InvalidateAll)

	reg.RegisterFactory(string(session.KindX11), session.NewX11Factory())
	reg.RegisterFactory(string(session.KindTTY), session.NewTTYFactory())
	reg.RegisterFactory(string(session.KindRemote), session.NewRemoteFactory())
	reg.RegisterFactory("scheduler", scheduler.NewFactory(sessions))
	reg.RegisterFactory("screensaver-cfg", modules.NewScreensaverCfgFactory(settings.HelperPaths["screensaver"]))
	reg.RegisterFactory("lock", modules.NewLockFactory(settings.HelperPaths["lock"]))
	reg.RegisterFactory("dpms-helper", modules.NewDPMSHelperFactory(settings.HelperPaths["dpms"]))

	configPluginPath := settings.ConfigPlugin
	if configPluginPath == "" {
		if home, err := os.UserConfigDir(); err == nil {
			configPluginPath = filepath.Join(home, "lockd", "config.so")
		}
	}
	configureFn, err := config.LoadUserConfig(configPluginPath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load user configuration, continuing with zero user modules")
		configureFn = func(*config.Configurator) {}
	} else if _, statErr := os.Stat(configPluginPath); os.IsNotExist(statErr) {
		log.Warn().Str("path", configPluginPath).Msg("user configuration not found, continuing with zero user modules")
	}
	host := config.NewHost(logging.Component(log, "config"), configureFn)

	// Install in ascending key order ("20-config" before "30-sessions")
	// to match how SelectorChain.Build runs them; Build itself sorts keys
	// so this ordering isn't load-bearing, but installing out of order
	// here would be confusing to read against that guarantee.
	host.Install(chain)
	sessions.Install(chain)

	reg.RegisterFactory("launcher", session.NewLauncherFactory(chain, sessions))

	shutdownOnce := sync.OnceFunc(func() {
		loop.Stop()
	})

	handlers := &socket.Handlers{
		Engine:     reg,
		Sessions:   sessions,
		ConfigHost: host,
		ConfigPath: configPluginPath,
		Shutdown:   shutdownOnce,
	}
	socketPath := filepath.Join(runtimeDir, "control.sock")
	srv := socket.New(logging.Component(log, "socket"), socketPath, reg, handlers)
	signals := sleepsignal.NewSignals(logging.Component(log, "signals"), reg, shutdownOnce, func() {
		fn, err := config.LoadUserConfig(configPluginPath)
		if err != nil {
			log.Warn().Err(err).Msg("reload: failed to load user configuration")
			return
		}
		host.SetConfigureFunc(fn)
		_ = reg.Update()
	})

	// srv and signals have no start-up dependency on each other; bring
	// both up concurrently and fail fast if either refuses to start.
	var g errgroup.Group
	g.Go(srv.Start)
	g.Go(signals.Start)
	if err := g.Wait(); err != nil {
		return err
	}
	defer srv.Stop()
	defer signals.Stop()

	inhibitor := sleepsignal.NewInhibitor(logging.Component(log, "sleepsignal"), reg)
	if err := inhibitor.Start(); err != nil {
		log.Warn().Err(err).Msg("sleep inhibitor unavailable")
	}
	defer inhibitor.Stop()

	if addr := os.Getenv("LOCKD_BUS_LISTEN"); addr != "" {
		sharedKey := []byte(os.Getenv("LOCKD_BUS_KEY"))
		b := bus.New(logging.Component(log, "bus"), sharedKey, sessions, reg.Get, reg)
		if err := b.Listen(addr); err != nil {
			log.Warn().Err(err).Msg("peer bus listen failed")
		} else {
			defer b.Close()
		}
	}

	loop.Enqueue(func() { _ = reg.Update() })
	loop.Run()
	return nil
}
