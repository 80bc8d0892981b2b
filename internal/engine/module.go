package engine

// Module is the capability set every module instance must implement. The
// remaining, optional capabilities (Reconfigurer, DependencyProvider,
// CLICommander, SocketCommander) are detected with type assertions by the
// Reconciler and the components that route commands, rather than requiring
// every module to implement every method.
type Module interface {
	// Start brings the module into its running state. It must not block
	// indefinitely; long-running waits belong on a worker goroutine whose
	// completion is reported back through Handle.Enqueue.
	Start() error

	// Stop tears the module down. Errors are logged by the Reconciler and
	// do not prevent sibling modules from stopping.
	Stop() error
}

// Reconfigurer is implemented by modules that can adopt new parameters
// in place instead of being stopped and restarted. Reconfigure returns true
// if it successfully adopted newArgs; false tells the Reconciler to fall
// back to a stop/start cycle.
type Reconfigurer interface {
	Reconfigure(newArgs []string) bool
}

// DependencyProvider is implemented by modules whose Spec implies other
// specs must be running first. Dependencies are expanded recursively and
// prepended to the Wanted list ahead of the dependent.
type DependencyProvider interface {
	Dependencies() []Spec
}

// CLICommander lets a module answer an out-of-daemon CLI invocation
// (the "module" CLI command) without the daemon running.
type CLICommander interface {
	CLICommand(args []string) (string, error)
}

// SocketCommander lets a running module answer a "module" control-socket
// command routed to its instance.
type SocketCommander interface {
	SocketCommand(args []string) (string, error)
}

// Factory constructs a Module instance for a Spec. Every module
// implementation registers a Factory under its Spec.Name.
type Factory func(h Handle, spec Spec) (Module, error)
