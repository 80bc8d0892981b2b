// Command lockctl is the CLI wrapper around the control socket:
// start/stop/status/reload/lock/unlock/attach/detach, plus an internal
// "module" command for out-of-daemon helper invocations that never touch
// the socket at all.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lockd/lockd/internal/config"
	"github.com/lockd/lockd/internal/daemonutil"
	"github.com/lockd/lockd/internal/engine"
	"github.com/lockd/lockd/internal/modules"
	"github.com/lockd/lockd/internal/scheduler"
	"github.com/lockd/lockd/internal/session"
	"github.com/lockd/lockd/internal/socket"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// exit codes returned to the shell.
const (
	exitOK              = 0
	exitError           = 1
	exitUsageOrNoDaemon = 2
)

func main() {
	root := &cobra.Command{
		Use:           "lockctl",
		Short:         "control the lockd session-lock daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCmd(),
		newSimpleSocketCmd("stop", "ask the daemon to shut down"),
		newSimpleSocketCmd("status", "show the daemon's current state"),
		newSimpleSocketCmd("reload", "re-read the user configuration"),
		newSimpleSocketCmd("lock", "lock the session immediately"),
		newSimpleSocketCmd("unlock", "unlock the session immediately"),
		newAttachDetachCmd("attach", "attach a session to the registry"),
		newAttachDetachCmd("detach", "detach a session from the registry"),
		newModuleCmd(),
	)

	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the CLI's exit-code convention: a
// UserError (which includes "daemon not running") is a usage failure,
// anything else is unrecoverable.
func exitCodeFor(err error) int {
	if _, ok := err.(*engine.UserError); ok {
		return exitUsageOrNoDaemon
	}
	return exitError
}

func socketPath() (string, error) {
	settingsPath := os.Getenv("LOCKD_SETTINGS")
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return "", err
	}
	runtimeDir, err := daemonutil.ResolveRuntimeDir(settings.RuntimeDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, "control.sock"), nil
}

func newSimpleSocketCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(name, args)
		},
	}
}

func newAttachDetachCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <kind> <id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(name, args)
		},
	}
}

func sendAndPrint(name string, args []string) error {
	path, err := socketPath()
	if err != nil {
		return err
	}
	reply, err := dial(path, name, args)
	if err != nil {
		return engine.NewUserError("daemon not running: %v", err)
	}
	if !reply.OK {
		return fmt.Errorf("%s", reply.Error)
	}
	if reply.Result != "" {
		infoColor.Println(reply.Result)
	} else {
		successColor.Println("ok")
	}
	return nil
}

func newStartCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the daemon if it is not already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := socketPath()
			if err != nil {
				return err
			}
			if _, err := dial(path, "ping", nil); err == nil {
				successColor.Println("daemon already running")
				return nil
			}

			bin, err := exec.LookPath("lockd")
			if err != nil {
				return engine.NewUserError("cannot find lockd binary in PATH: %v", err)
			}

			c := exec.Command(bin)
			if foreground {
				c.Stdout = os.Stdout
				c.Stderr = os.Stderr
				return c.Run()
			}
			c.Stdout = nil
			c.Stderr = nil
			if err := c.Start(); err != nil {
				return fmt.Errorf("starting lockd: %w", err)
			}
			successColor.Println("daemon started")
			return nil
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "run the daemon in the foreground instead of detaching")
	return cmd
}

// newModuleCmd implements the out-of-daemon helper path: it never dials
// the socket, instead constructing a bare Registry with the
// same factories the daemon registers and routing straight to the named
// module's CLICommand, exactly as a helper binary invoked without a
// running daemon would.
func newModuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "module <name> [args...]",
		Short:  "invoke a module's out-of-daemon CLI command",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsPath := os.Getenv("LOCKD_SETTINGS")
			settings, err := config.LoadSettings(settingsPath)
			if err != nil {
				return err
			}

			reg := bareRegistry(settings)
			result, err := reg.CLICommand(engine.NewSpec(args[0]), args[1:])
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
}

// bareRegistry builds a Registry with no loop running, suitable only for
// Get/CLICommand: the modules it constructs must never be Start'd through
// this path, since nothing drives their Handle.Enqueue callbacks.
func bareRegistry(settings config.Settings) *engine.Registry {
	loop := engine.NewLoop(noopLogger())
	chain := engine.NewSelectorChain()
	state := &engine.State{}
	reg := engine.NewRegistry(noopLogger(), loop, chain, state)

	sessions := session.New(reg, reg.Get)
	state.Idle = sessions

	reg.RegisterFactory(string(session.KindX11), session.NewX11Factory())
	reg.RegisterFactory(string(session.KindTTY), session.NewTTYFactory())
	reg.RegisterFactory(string(session.KindRemote), session.NewRemoteFactory())
	reg.RegisterFactory("scheduler", scheduler.NewFactory(sessions))
	reg.RegisterFactory("screensaver-cfg", modules.NewScreensaverCfgFactory(settings.HelperPaths["screensaver"]))
	reg.RegisterFactory("lock", modules.NewLockFactory(settings.HelperPaths["lock"]))
	reg.RegisterFactory("dpms-helper", modules.NewDPMSHelperFactory(settings.HelperPaths["dpms"]))
	return reg
}

func dial(path, cmdName string, args []string) (socket.Reply, error) {
	return dialSocket(path, cmdName, args, 3*time.Second)
}
