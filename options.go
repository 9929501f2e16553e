package taskchain

import "github.com/nats-io/nats.go/jetstream"

// Option configures a Manager with optional dependencies.
type Option func(*managerOptions)

// managerOptions holds optional Manager configuration.
type managerOptions struct {
	js      jetstream.JetStream
	users   UserSource
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
}

// WithJetStream enables snapshot publishing to the configured KV bucket.
//
// Without it the manager keeps the snapshot in memory only.
//
// Parameters:
//   - js: JetStream context used to create or open the snapshot bucket
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	mgr, err := taskchain.NewManager(&cfg, querier, taskchain.WithJetStream(js))
func WithJetStream(js jetstream.JetStream) Option {
	return func(o *managerOptions) {
		o.js = js
	}
}

// WithUserSource sets the source of the user population.
//
// Without it the snapshot carries no users.
//
// Parameters:
//   - users: UserSource implementation
//
// Returns:
//   - Option: Functional option for NewManager
func WithUserSource(users UserSource) Option {
	return func(o *managerOptions) {
		o.users = users
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	hooks := &taskchain.Hooks{
//	    OnTasksChanged: func(ctx context.Context, changed []taskchain.TaskData, removed []taskchain.TaskID) error {
//	        return solver.ApplyProblemChanges(changed, removed)
//	    },
//	}
//	mgr, err := taskchain.NewManager(&cfg, querier, taskchain.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *managerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewManager
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	mgr, err := taskchain.NewManager(&cfg, querier, taskchain.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}
