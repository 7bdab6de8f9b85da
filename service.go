package auth

// Service wires every auth component from one Config
type Service struct {
	Config    Config
	Users     UserRepository
	Codec     *Codec
	Sessions  *SessionStore
	Lifecycle *LifecycleEngine
	Gate      *Gate
	Auther    *Auther

	RegisterUser            *RegisterUserHandler
	RequestConfirmation     *RequestConfirmationHandler
	ConfirmAccount          *ConfirmAccountHandler
	InitializePasswordReset *InitializePasswordResetHandler
	FinalizePasswordReset   *FinalizePasswordResetHandler
	InviteUser              *InviteUserHandler
	AcceptInvitation        *AcceptInvitationHandler
}

// ServiceOption configures the collaborators shared by the components
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger   Logger
	mailer   Mailer
	metrics  MetricsRecorder
	activity ActivitySink
	clock    Clock
}

// WithServiceLogger sets the logger for every component
func WithServiceLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithServiceMailer sets the lifecycle mailer
func WithServiceMailer(m Mailer) ServiceOption {
	return func(o *serviceOptions) {
		o.mailer = m
	}
}

// WithServiceMetrics sets the metrics recorder for every component
func WithServiceMetrics(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithServiceActivitySink sets the activity sink for every component
func WithServiceActivitySink(sink ActivitySink) ServiceOption {
	return func(o *serviceOptions) {
		o.activity = sink
	}
}

// WithServiceClock sets the time source for every component
func WithServiceClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}

// NewService validates cfg and builds the components on top of the given
// repositories
func NewService(cfg Config, users UserRepository, tokens SessionTokenRepository, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.logger = normalizeLogger(o.logger)
	o.clock = normalizeClock(o.clock)

	codec, err := NewCodec(cfg, WithCodecClock(o.clock), WithCodecLogger(o.logger))
	if err != nil {
		return nil, err
	}

	sessions := NewSessionStore(cfg, tokens,
		WithSessionLogger(o.logger),
		WithSessionMetrics(o.metrics),
		WithSessionActivitySink(o.activity),
	)

	lifecycle := NewLifecycleEngine(cfg, users,
		WithMailer(o.mailer),
		WithLifecycleLogger(o.logger),
		WithLifecycleClock(o.clock),
		WithLifecycleMetrics(o.metrics),
		WithLifecycleActivitySink(o.activity),
	)

	gate := NewGate(cfg, codec, sessions, users,
		WithGateLogger(o.logger),
		WithGateMetrics(o.metrics),
	)

	auther := NewAuthenticator(cfg, users, codec, sessions).
		WithLogger(o.logger).
		WithActivitySink(o.activity).
		WithClock(o.clock)

	return &Service{
		Config:    cfg,
		Users:     users,
		Codec:     codec,
		Sessions:  sessions,
		Lifecycle: lifecycle,
		Gate:      gate,
		Auther:    auther,

		RegisterUser: NewRegisterUserHandler(cfg, users, lifecycle).
			WithLogger(o.logger).
			WithActivitySink(o.activity),
		RequestConfirmation:     NewRequestConfirmationHandler(users, lifecycle),
		ConfirmAccount:          NewConfirmAccountHandler(lifecycle),
		InitializePasswordReset: NewInitializePasswordResetHandler(users, lifecycle),
		FinalizePasswordReset: NewFinalizePasswordResetHandler(lifecycle, sessions).
			WithLogger(o.logger).
			WithActivitySink(o.activity),
		InviteUser: NewInviteUserHandler(cfg, users, lifecycle).
			WithLogger(o.logger).
			WithActivitySink(o.activity),
		AcceptInvitation: NewAcceptInvitationHandler(lifecycle, auther),
	}, nil
}
