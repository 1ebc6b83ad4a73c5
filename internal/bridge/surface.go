package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/veganlens/veganlens-core/internal/camera"
	"github.com/veganlens/veganlens-core/internal/infrastructure/mqtt"
)

// Command timing defaults. Permission waits on a human; captures wait on the
// device encoder; everything else should answer promptly.
const (
	defaultCommandTimeout    = 5 * time.Second
	defaultCaptureTimeout    = 30 * time.Second
	defaultPermissionTimeout = 2 * time.Minute

	commandQoS = 1
)

// MQTTClient is the broker surface the bridge needs. Satisfied by
// *mqtt.Client; narrowed for mocking in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// DetectionSink receives successful barcode detections. Satisfied by
// *camera.Coordinator.
type DetectionSink interface {
	RecordBarcodeDetection()
}

// Options configures a Surface.
type Options struct {
	// Client is the connected MQTT client. Required.
	Client MQTTClient

	// Logger is optional structured logging.
	Logger Logger

	// CommandTimeout, CaptureTimeout and PermissionTimeout override the
	// defaults when positive.
	CommandTimeout    time.Duration
	CaptureTimeout    time.Duration
	PermissionTimeout time.Duration
}

// Surface implements camera.CaptureSurface over MQTT.
//
// Every command carries a UUID; the device-side runtime answers on the
// response topic keyed by that ID. At most one response is consumed per
// command; late responses are dropped.
//
// All methods are safe for concurrent use.
type Surface struct {
	client MQTTClient
	logger Logger
	topics mqtt.Topics

	commandTimeout    time.Duration
	captureTimeout    time.Duration
	permissionTimeout time.Duration

	pendingMu sync.Mutex
	pending   map[string]chan *ResponseMessage

	sinkMu sync.RWMutex
	sink   DetectionSink
}

var _ camera.CaptureSurface = (*Surface)(nil)

// NewSurface creates an MQTT capture surface. Call Start before handing it
// to the coordinator.
func NewSurface(opts Options) (*Surface, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Surface{
		client:            opts.Client,
		logger:            logger,
		commandTimeout:    defaultCommandTimeout,
		captureTimeout:    defaultCaptureTimeout,
		permissionTimeout: defaultPermissionTimeout,
		pending:           make(map[string]chan *ResponseMessage),
	}
	if opts.CommandTimeout > 0 {
		s.commandTimeout = opts.CommandTimeout
	}
	if opts.CaptureTimeout > 0 {
		s.captureTimeout = opts.CaptureTimeout
	}
	if opts.PermissionTimeout > 0 {
		s.permissionTimeout = opts.PermissionTimeout
	}

	return s, nil
}

// Start subscribes to the response and event topics. Subscriptions are
// restored by the MQTT client on reconnect.
func (s *Surface) Start() error {
	if err := s.client.Subscribe(s.topics.AllCameraResponses(), commandQoS, s.handleResponse); err != nil {
		return fmt.Errorf("subscribing to responses: %w", err)
	}
	if err := s.client.Subscribe(s.topics.AllCameraEvents(), commandQoS, s.handleEvent); err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}

	s.logger.Info("capture surface bridge started")
	return nil
}

// SetDetectionSink wires barcode-detection events to the coordinator. The
// coordinator is constructed after the surface, so this cannot be an Options
// field.
func (s *Surface) SetDetectionSink(sink DetectionSink) {
	s.sinkMu.Lock()
	s.sink = sink
	s.sinkMu.Unlock()
}

// RequestPermission asks the device runtime to resolve the permission
// prompt. Denial is not an error.
func (s *Surface) RequestPermission(ctx context.Context) (bool, error) {
	resp, err := s.request(ctx, NewCommandMessage(CommandPermission), s.permissionTimeout)
	if err != nil {
		return false, err
	}

	granted, _ := resp.Data["granted"].(bool)
	return granted, nil
}

// Activate starts the device frame pipeline.
func (s *Surface) Activate(ctx context.Context) error {
	_, err := s.request(ctx, NewCommandMessage(CommandActivate), s.commandTimeout)
	return err
}

// Deactivate stops the frame pipeline and releases the hardware.
func (s *Surface) Deactivate(ctx context.Context) error {
	_, err := s.request(ctx, NewCommandMessage(CommandDeactivate), s.commandTimeout)
	return err
}

// ApplyConfig pushes the declarative configuration. Fire-and-forget: the
// surface reconciles itself against the latest payload, so there is nothing
// to wait for.
func (s *Surface) ApplyConfig(_ context.Context, cfg camera.SurfaceConfig) error {
	cmd := NewCommandMessage(CommandConfigure)
	cmd.Config = &cfg
	return s.publish(cmd)
}

// Capture requests a photo and returns the image URI from the response.
func (s *Surface) Capture(ctx context.Context, opts camera.CaptureOptions) (string, error) {
	cmd := NewCommandMessage(CommandCapture)
	cmd.Capture = &opts

	resp, err := s.request(ctx, cmd, s.captureTimeout)
	if err != nil {
		return "", err
	}

	uri, _ := resp.Data["uri"].(string)
	if uri == "" {
		return "", fmt.Errorf("%w: capture response missing uri", ErrCommandFailed)
	}
	return uri, nil
}

// publish marshals and sends one command without awaiting a response.
func (s *Surface) publish(cmd CommandMessage) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshaling %s command: %w", cmd.Command, err)
	}

	if err := s.client.Publish(s.topics.CameraCommand(cmd.Command), payload, commandQoS, false); err != nil {
		return fmt.Errorf("publishing %s command: %w", cmd.Command, err)
	}
	return nil
}

// request sends one command and waits for its correlated response.
func (s *Surface) request(ctx context.Context, cmd CommandMessage, timeout time.Duration) (*ResponseMessage, error) {
	ch := make(chan *ResponseMessage, 1)

	s.pendingMu.Lock()
	s.pending[cmd.ID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, cmd.ID)
		s.pendingMu.Unlock()
	}()

	if err := s.publish(cmd); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if !resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("%w: %s: %s", ErrCommandFailed, resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("%w: %s", ErrCommandFailed, cmd.Command)
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, cmd.Command, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleResponse routes an incoming response to its waiting command.
func (s *Surface) handleResponse(topic string, payload []byte) error {
	requestID := topicSuffix(topic)
	if requestID == "" {
		return fmt.Errorf("bridge: malformed response topic %q", topic)
	}

	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if resp.RequestID == "" {
		resp.RequestID = requestID
	}

	s.pendingMu.Lock()
	ch, ok := s.pending[requestID]
	s.pendingMu.Unlock()

	if !ok {
		// Late response after timeout; nothing is waiting.
		s.logger.Debug("dropping unsolicited response", "request_id", requestID)
		return nil
	}

	select {
	case ch <- &resp:
	default:
	}
	return nil
}

// handleEvent processes an unsolicited event from the surface.
func (s *Surface) handleEvent(topic string, payload []byte) error {
	var event EventMessage
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("parsing event: %w", err)
	}
	if event.Type == "" {
		event.Type = topicSuffix(topic)
	}

	switch event.Type {
	case EventBarcodeDetected:
		s.sinkMu.RLock()
		sink := s.sink
		s.sinkMu.RUnlock()
		if sink != nil {
			sink.RecordBarcodeDetection()
		}
	case EventSurfaceError:
		s.logger.Warn("capture surface reported an error", "data", event.Data)
	default:
		s.logger.Debug("ignoring surface event", "type", event.Type)
	}
	return nil
}

// topicSuffix returns the last segment of an MQTT topic.
func topicSuffix(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
