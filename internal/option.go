package internal

// Option is a functional option for configuring the SlideMan server.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig sets the server configuration. Run requires it.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
