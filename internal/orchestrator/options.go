package orchestrator

import (
	"github.com/ShayCichocki/conclave/internal/orchestrator/policy"
)

// Option configures a Session. Use With* functions to create Options.
type Option func(*sessionOptions)

// sessionOptions holds all optional configuration of Start.
type sessionOptions struct {
	sessionID      string
	logger         *DebugLogger
	policyConfig   *policy.Config
	projectContext map[string]any
	eventBuffer    int
}

// WithSessionID sets the session ID instead of generating one.
func WithSessionID(id string) Option {
	return func(o *sessionOptions) { o.sessionID = id }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithPolicy overrides the policy configuration of the RunConfig.
func WithPolicy(p *policy.Config) Option {
	return func(o *sessionOptions) { o.policyConfig = p }
}

// WithProjectContext seeds the artifact store with project analysis values.
func WithProjectContext(ctx map[string]any) Option {
	return func(o *sessionOptions) { o.projectContext = ctx }
}

// WithEventBuffer sets the capacity of the session event channel.
func WithEventBuffer(n int) Option {
	return func(o *sessionOptions) { o.eventBuffer = n }
}
