package firmata

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/logger"
)

// Default configuration values.
const (
	// DefaultResponseTimeout of zero waits for a response without bound.
	DefaultResponseTimeout     = time.Duration(0)
	DefaultCloseTimeout        = 3 * time.Second
	DefaultFeatureQueryTimeout = time.Second

	// DefaultShutdownProbe is sent during Close to provoke the device's
	// unsupported request diagnostic.
	DefaultShutdownProbe = codec.SysexUserFeatureF

	// DefaultUnsupportedText is the prefix of the diagnostic string the device
	// sends for sysex commands it does not implement.
	DefaultUnsupportedText = "Unhandled sysex command"
)

// Configuration range limits.
const (
	MinCloseTimeout = 10 * time.Millisecond
	MaxCloseTimeout = time.Minute

	MaxResponseTimeout = 10 * time.Minute
)

// EngineConfig holds the configuration of a protocol engine.
type EngineConfig struct {
	logger   logger.Logger
	listener EventListener

	// responseTimeout bounds every synchronous request; zero means no bound.
	responseTimeout time.Duration

	// closeTimeout bounds the wait for the shutdown acknowledgement and
	// again for the reader goroutine to exit after the forced fallback.
	closeTimeout time.Duration

	shutdownProbe   codec.SysexCmd
	unsupportedText string

	queryFeatures       bool
	featureQueryTimeout time.Duration

	// samplingInterval is sent at start when positive.
	samplingInterval time.Duration
}

// NewEngineConfig creates an engine configuration.
// opts are functional options applied in order; see With* functions.
func NewEngineConfig(opts ...Option) (*EngineConfig, error) {
	cfg := &EngineConfig{
		logger:              logger.GetLogger(),
		responseTimeout:     DefaultResponseTimeout,
		closeTimeout:        DefaultCloseTimeout,
		shutdownProbe:       DefaultShutdownProbe,
		unsupportedText:     DefaultUnsupportedText,
		queryFeatures:       true,
		featureQueryTimeout: DefaultFeatureQueryTimeout,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// GetLogger returns the configured logger.
func (cfg *EngineConfig) GetLogger() logger.Logger { return cfg.logger }

// Listener returns the initial event listener, or nil.
func (cfg *EngineConfig) Listener() EventListener { return cfg.listener }

// ResponseTimeout returns the bound of synchronous requests; zero means none.
func (cfg *EngineConfig) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// CloseTimeout returns the shutdown handshake timeout.
func (cfg *EngineConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// ShutdownProbe returns the sysex id sent to trigger the shutdown
// acknowledgement.
func (cfg *EngineConfig) ShutdownProbe() codec.SysexCmd { return cfg.shutdownProbe }

// UnsupportedText returns the prefix of the device's unsupported request
// diagnostic.
func (cfg *EngineConfig) UnsupportedText() string { return cfg.unsupportedText }

// QueryFeatures reports whether Start asks for the extended feature report.
func (cfg *EngineConfig) QueryFeatures() bool { return cfg.queryFeatures }

// FeatureQueryTimeout returns the bound of the feature report query.
func (cfg *EngineConfig) FeatureQueryTimeout() time.Duration { return cfg.featureQueryTimeout }

// SamplingInterval returns the sampling interval applied at start; zero keeps
// the device default.
func (cfg *EngineConfig) SamplingInterval() time.Duration { return cfg.samplingInterval }

// --- Option ---

// Option is a functional option for configuring an EngineConfig.
type Option interface {
	apply(*EngineConfig) error
}

type optFunc func(*EngineConfig) error

func (f optFunc) apply(cfg *EngineConfig) error { return f(cfg) }

// WithLogger sets the logger of the engine.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *EngineConfig) error {
		if l == nil {
			return errors.New("firmata: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithEventListener sets the listener that receives value notifications.
// It can be replaced later with [Engine.SetEventListener].
func WithEventListener(l EventListener) Option {
	return optFunc(func(cfg *EngineConfig) error {
		cfg.listener = l
		return nil
	})
}

// WithResponseTimeout bounds the wait of every synchronous request.
// Zero, the default, waits until the device replies, the caller's context is
// done or the engine stops.
func WithResponseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *EngineConfig) error {
		if d < 0 || d > MaxResponseTimeout {
			return fmt.Errorf("firmata: response timeout %v out of range [0, %v]", d, MaxResponseTimeout)
		}
		cfg.responseTimeout = d

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the device to acknowledge
// the shutdown probe before forcing the reader loop down.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *EngineConfig) error {
		if d < MinCloseTimeout || d > MaxCloseTimeout {
			return fmt.Errorf("firmata: close timeout %v out of range [%v, %v]", d, MinCloseTimeout, MaxCloseTimeout)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithShutdownProbe sets the sysex id sent by Close. It must be an id the
// device does not implement.
func WithShutdownProbe(cmd codec.SysexCmd) Option {
	return optFunc(func(cfg *EngineConfig) error {
		if cmd > 0x7F {
			return fmt.Errorf("firmata: shutdown probe 0x%02X is not a sysex id", byte(cmd))
		}
		cfg.shutdownProbe = cmd

		return nil
	})
}

// WithUnsupportedText sets the prefix of the diagnostic the device sends for
// unimplemented sysex commands.
func WithUnsupportedText(text string) Option {
	return optFunc(func(cfg *EngineConfig) error {
		if text == "" {
			return errors.New("firmata: unsupported text must not be empty")
		}
		cfg.unsupportedText = text

		return nil
	})
}

// WithFeatureQuery enables or disables the extended feature report query at
// start. Enabled by default.
func WithFeatureQuery(enabled bool) Option {
	return optFunc(func(cfg *EngineConfig) error {
		cfg.queryFeatures = enabled
		return nil
	})
}

// WithFeatureQueryTimeout bounds the feature report query at start.
func WithFeatureQueryTimeout(d time.Duration) Option {
	return optFunc(func(cfg *EngineConfig) error {
		if d <= 0 {
			return errors.New("firmata: feature query timeout must be positive")
		}
		cfg.featureQueryTimeout = d

		return nil
	})
}

// WithSamplingInterval sets the device sampling interval at start, with
// millisecond resolution.
func WithSamplingInterval(d time.Duration) Option {
	return optFunc(func(cfg *EngineConfig) error {
		ms := d.Milliseconds()
		if ms < 1 || ms > codec.MaxValue14 {
			return fmt.Errorf("firmata: sampling interval %v out of range [1ms, %dms]", d, codec.MaxValue14)
		}
		cfg.samplingInterval = d

		return nil
	})
}
