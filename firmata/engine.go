package firmata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/internal/queue"
	"github.com/arloliu/go-firmata/internal/task"
	"github.com/arloliu/go-firmata/logger"
)

// maxStaleInput caps the bytes discarded from the transport at start.
const maxStaleInput = 1 << 16

// Engine is a host-side Firmata protocol engine.
//
// It owns one reader goroutine, the only reader of the transport, which
// decodes inbound frames and either queues them for the synchronous request
// in progress or routes value reports to the event listener. The pin cache
// and the task id cache are safe for concurrent use.
//
// The protocol has no request ids: a request takes the next response of the
// expected type off the queue. Synchronous requests are therefore serialized
// by the engine; callers may issue them from several goroutines, but they
// run one at a time.
type Engine struct {
	pctx      context.Context
	cfg       *EngineConfig
	logger    logger.Logger
	transport Transport

	state   atomicState
	taskMgr *task.Manager

	// running is true while the reader loop is alive.
	running      atomic.Bool
	shuttingDown atomic.Bool
	readerDone   chan struct{}

	responses *queue.Blocking[codec.Response]
	requestMu sync.Mutex // held across write and wait of a request
	writeMu   sync.Mutex // keeps frames from interleaving on the wire

	listener atomic.Pointer[listenerBox]

	pins        *xsync.MapOf[int, *Pin]
	channelPins atomic.Pointer[map[int]int]
	tasks       *xsync.MapOf[int, struct{}]
	// i2cReaders holds the reply handlers of continuous I2C reads by address
	i2cReaders *xsync.MapOf[int, I2CReplyHandler]

	firmware atomic.Pointer[codec.FirmwareDetails]
	features atomic.Pointer[codec.Features]

	closeOnce sync.Once
	closeErr  error

	epoch   time.Time
	metrics EngineMetrics
}

// NewEngine creates an engine over transport. The engine takes ownership of
// the transport and closes it in Close.
func NewEngine(ctx context.Context, transport Transport, cfg *EngineConfig) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if transport == nil {
		return nil, ErrTransportNil
	}

	e := &Engine{
		pctx:       ctx,
		cfg:        cfg,
		logger:     cfg.logger,
		transport:  transport,
		taskMgr:    task.NewManager(ctx, cfg.logger),
		readerDone: make(chan struct{}),
		responses:  queue.NewBlocking[codec.Response](8),
		pins:       xsync.NewMapOf[int, *Pin](),
		tasks:      xsync.NewMapOf[int, struct{}](),
		i2cReaders: xsync.NewMapOf[int, I2CReplyHandler](),
		epoch:      time.Now(),
	}
	e.channelPins.Store(&map[int]int{})
	e.SetEventListener(cfg.listener)

	return e, nil
}

// Context returns the context the engine was created with.
func (e *Engine) Context() context.Context { return e.pctx }

// GetLogger returns the logger of the engine.
func (e *Engine) GetLogger() logger.Logger { return e.logger }

// GetMetrics returns the metrics of the engine.
func (e *Engine) GetMetrics() *EngineMetrics { return &e.metrics }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state.Get() }

// IsRunning reports whether the reader loop is alive.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// SetEventListener replaces the event listener; nil removes it.
func (e *Engine) SetEventListener(l EventListener) {
	if l == nil {
		e.listener.Store(nil)
		return
	}
	e.listener.Store(&listenerBox{l: l})
}

// Start launches the reader loop and performs the handshake: firmware
// details, the optional feature report, pin capabilities and the analog
// mapping. ctx bounds the handshake requests.
//
// If Start fails after the reader loop was launched, the engine must still
// be closed.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.ToStarted() {
		if e.state.Get() == StateClosed || e.state.Get() == StateShuttingDown {
			return ErrEngineClosed
		}

		return ErrAlreadyStarted
	}

	e.discardStaleInput()

	e.running.Store(true)
	if err := e.taskMgr.Start("reader", e.readLoop, e.onReaderExit); err != nil {
		e.running.Store(false)
		close(e.readerDone)

		return fmt.Errorf("firmata: start reader loop: %w", err)
	}

	if err := e.handshake(ctx); err != nil {
		return err
	}

	if !e.state.ToRunning() {
		return ErrEngineClosed
	}

	e.logger.Info("firmata: engine running",
		"firmware", e.Firmware().String(),
		"pins", e.pins.Size())

	return nil
}

func (e *Engine) handshake(ctx context.Context) error {
	resp, err := e.request(ctx, "firmware query", codec.FirmwareQuery(), kindIs(codec.KindFirmwareDetails))
	if err != nil {
		return fmt.Errorf("firmata: query firmware: %w", err)
	}
	fw, _ := resp.(codec.FirmwareDetails)
	e.firmware.Store(&fw)

	if e.cfg.queryFeatures {
		if err := e.queryFeatures(ctx); err != nil {
			e.logger.Warn("firmata: feature report unavailable", "error", err)
		}
	}

	resp, err = e.request(ctx, "capability query", codec.CapabilityQuery(), kindIs(codec.KindCapabilities))
	if err != nil {
		return fmt.Errorf("firmata: query capabilities: %w", err)
	}
	e.loadCapabilities(resp.(codec.Capabilities))

	resp, err = e.request(ctx, "analog mapping query", codec.AnalogMappingQuery(), kindIs(codec.KindAnalogMapping))
	if err != nil {
		return fmt.Errorf("firmata: query analog mapping: %w", err)
	}
	e.loadAnalogMapping(resp.(codec.AnalogMapping))

	if e.cfg.samplingInterval > 0 {
		if err := e.SetSamplingInterval(e.cfg.samplingInterval); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) queryFeatures(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(ctx, e.cfg.featureQueryTimeout)
	defer cancel()

	resp, err := e.request(fctx, "feature query", codec.FeatureQuery(), kindIs(codec.KindFeatures))
	if err != nil {
		return err
	}
	features, _ := resp.(codec.Features)
	e.features.Store(&features)

	return nil
}

// loadCapabilities creates one cached pin per capability list entry.
func (e *Engine) loadCapabilities(caps codec.Capabilities) {
	e.pins.Clear()
	for i, pinCaps := range caps.Pins {
		e.pins.Store(i, newPin(i, pinCaps))
	}
	e.logger.Debug("firmata: pin capabilities loaded", "pins", len(caps.Pins))
}

func (e *Engine) loadAnalogMapping(m codec.AnalogMapping) {
	for pin, ch := range m.Channels {
		if p, ok := e.pins.Load(pin); ok {
			p.setAnalogChannel(ch)
		}
	}
	byChannel := m.PinsByChannel()
	e.channelPins.Store(&byChannel)
}

// discardStaleInput drops bytes buffered from a previous session.
func (e *Engine) discardStaleInput() {
	discarded := 0
	for discarded < maxStaleInput {
		n, err := e.transport.BytesAvailable()
		if err != nil || n <= 0 {
			break
		}
		for i := 0; i < n; i++ {
			if _, err := e.transport.ReadByte(); err != nil {
				break
			}
			discarded++
		}
	}

	if r, ok := e.transport.(InputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			e.logger.Warn("firmata: reset input buffer failed", "error", err)
		}
	}

	if discarded > 0 {
		e.logger.Debug("firmata: discarded stale input", "bytes", discarded)
	}
}

// write sends one frame.
func (e *Engine) write(frame []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, err := e.transport.Write(frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("%w: %w", ErrNotRunning, err)
		}

		return fmt.Errorf("firmata: write frame: %w", err)
	}
	e.metrics.incFramesSent()
	e.logger.Debug("firmata: frame sent", "frame", fmt.Sprintf("% X", frame))

	return nil
}

// send writes a frame that expects no response.
func (e *Engine) send(frame []byte) error {
	if err := e.checkUsable(); err != nil {
		return err
	}

	return e.write(frame)
}

// checkUsable rejects operations on engines that are not started or whose
// reader loop has stopped.
func (e *Engine) checkUsable() error {
	switch e.state.Get() {
	case StateCreated:
		return ErrNotStarted
	case StateShuttingDown, StateClosed:
		return ErrEngineClosed
	}
	if !e.running.Load() {
		return ErrNotRunning
	}

	return nil
}

// Firmware returns the firmware details fetched at start.
func (e *Engine) Firmware() codec.FirmwareDetails {
	if fw := e.firmware.Load(); fw != nil {
		return *fw
	}

	return codec.FirmwareDetails{}
}

// FirmwareDetails queries the device for its firmware name and version and
// refreshes the cached value.
func (e *Engine) FirmwareDetails(ctx context.Context) (codec.FirmwareDetails, error) {
	resp, err := e.request(ctx, "firmware query", codec.FirmwareQuery(), kindIs(codec.KindFirmwareDetails))
	if err != nil {
		return codec.FirmwareDetails{}, err
	}
	fw, _ := resp.(codec.FirmwareDetails)
	e.firmware.Store(&fw)

	return fw, nil
}

// Features returns the extended feature report fetched at start. ok is false
// when the device did not provide one.
func (e *Engine) Features() (features codec.Features, ok bool) {
	if f := e.features.Load(); f != nil {
		return *f, true
	}

	return codec.Features{}, false
}

// QueryProtocolVersion asks the device for its protocol version.
func (e *Engine) QueryProtocolVersion(ctx context.Context) (codec.ProtocolVersion, error) {
	resp, err := e.request(ctx, "version query", codec.VersionQuery(), kindIs(codec.KindProtocolVersion))
	if err != nil {
		return codec.ProtocolVersion{}, err
	}

	return resp.(codec.ProtocolVersion), nil
}

// SystemReset asks the device to reset and clears the cached pin modes,
// values and reporting flags. Continuous I2C reads end with the reset.
func (e *Engine) SystemReset() error {
	if err := e.send(codec.Reset()); err != nil {
		return err
	}
	e.i2cReaders.Clear()
	e.pins.Range(func(_ int, p *Pin) bool {
		p.reset()
		return true
	})

	return nil
}

// SetSamplingInterval sets how often the device samples reported inputs.
func (e *Engine) SetSamplingInterval(d time.Duration) error {
	frame, err := codec.SamplingInterval(int(d.Milliseconds()))
	if err != nil {
		return err
	}

	return e.send(frame)
}

// TaskIDsInUse returns the scheduler task ids the engine believes to be in
// use, in ascending order.
func (e *Engine) TaskIDsInUse() []int {
	ids := make([]int, 0, e.tasks.Size())
	e.tasks.Range(func(id int, _ struct{}) bool {
		ids = append(ids, id)
		return true
	})
	sort.Ints(ids)

	return ids
}

// monoNanos returns the time elapsed since the engine was created, read
// from the monotonic clock.
func (e *Engine) monoNanos(now time.Time) int64 {
	return now.Sub(e.epoch).Nanoseconds()
}
