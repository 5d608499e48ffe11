package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chatfabric/chat-node/internal/chatproto"
	"github.com/nats-io/nats.go"
)

// kvBucket is the JetStream key/value bucket mapping routing identities
// to the node that last claimed them.
const kvBucket = "participant-nodes"

const detailsRequestTimeout = 5 * time.Second

// Config carries the bus connection settings.
type Config struct {
	Servers              []string
	Verbose              bool
	AllowReconnect       bool
	ConnectTimeout       time.Duration
	ReconnectTimeWait    time.Duration
	MaxReconnectAttempts int

	// Node is this node's identifier, used for the pass-over inbox
	// subject and the connection name.
	Node string
}

// Interface guard
var _ Client = (*NATSClient)(nil)

// NATSClient is the production bus client. One instance serves the whole
// process.
type NATSClient struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	kv      nats.KeyValue
	pending []subscription
	started bool
}

func NewNATSClient(cfg Config, logger *slog.Logger) *NATSClient {
	return &NATSClient{cfg: cfg, logger: logger}
}

// StartUp connects to the cluster. With reconnection allowed the initial
// connect is also retried in the background, so a bus outage does not
// hold the node's boot hostage.
func (c *NATSClient) StartUp(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.logger.Info("BUS_CONNECTING", "servers", c.cfg.Servers)

	opts := nats.GetDefaultOptions()
	opts.Servers = c.cfg.Servers
	opts.Name = "chat-node/" + c.cfg.Node
	opts.Verbose = c.cfg.Verbose
	opts.AllowReconnect = c.cfg.AllowReconnect
	opts.RetryOnFailedConnect = c.cfg.AllowReconnect
	opts.Timeout = c.cfg.ConnectTimeout
	opts.ReconnectWait = c.cfg.ReconnectTimeWait
	opts.MaxReconnect = c.cfg.MaxReconnectAttempts

	opts.DisconnectedErrCB = func(_ *nats.Conn, err error) {
		c.logger.Warn("BUS_DISCONNECTED", "err", err)
	}
	opts.ReconnectedCB = func(nc *nats.Conn) {
		c.logger.Warn("BUS_RECONNECTED", "server", nc.ConnectedUrl())
	}
	opts.ClosedCB = func(*nats.Conn) {
		c.logger.Info("BUS_CONNECTION_CLOSED")
	}
	opts.DiscoveredServersCB = func(nc *nats.Conn) {
		c.logger.Info("BUS_SERVERS_DISCOVERED", "servers", nc.DiscoveredServers())
	}
	opts.AsyncErrorCB = func(_ *nats.Conn, sub *nats.Subscription, err error) {
		attrs := []any{"err", err}
		if sub != nil {
			attrs = append(attrs, "subject", sub.Subject)
		}
		c.logger.Error("BUS_ASYNC_ERROR", attrs...)
	}

	conn, err := opts.Connect()
	if err != nil {
		return fmt.Errorf("bus connect: %w", err)
	}
	c.conn = conn
	c.started = true

	if err := c.initKeyValue(); err != nil {
		// The routing table comes up lazily once JetStream is reachable.
		c.logger.Warn("BUS_ROUTING_TABLE_UNAVAILABLE", "err", err)
	}

	for _, s := range c.pending {
		if err := c.subscribeLocked(s); err != nil {
			return err
		}
	}
	c.pending = nil

	c.logger.Info("BUS_CONNECTED", "server", conn.ConnectedUrl())
	return nil
}

func (c *NATSClient) initKeyValue() error {
	js, err := c.conn.JetStream()
	if err != nil {
		return err
	}
	kv, err := js.KeyValue(kvBucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: kvBucket})
	}
	if err != nil {
		return err
	}
	c.kv = kv
	return nil
}

// keyValue resolves the routing bucket, retrying initialization if the
// first attempt raced a JetStream that was still coming up.
func (c *NATSClient) keyValue() (nats.KeyValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kv != nil {
		return c.kv, nil
	}
	if c.conn == nil || !c.conn.IsConnected() {
		return nil, ErrDisconnected
	}
	if err := c.initKeyValue(); err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}
	return c.kv, nil
}

func (c *NATSClient) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.kv = nil
	c.started = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.logger.Info("BUS_SHUTTING_DOWN")
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("bus drain: %w", err)
	}
	return nil
}

func (c *NATSClient) RegisterSubscriptionHandler(subject string, decode DecoderFunc, handle HandlerFunc, owner string) {
	s := subscription{subject: subject, owner: owner, decode: decode, handle: handle}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		c.pending = append(c.pending, s)
		return
	}
	if err := c.subscribeLocked(s); err != nil {
		c.logger.Error("BUS_SUBSCRIBE_FAILED", "subject", subject, "owner", owner, "err", err)
	}
}

func (c *NATSClient) subscribeLocked(s subscription) error {
	_, err := c.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		ev, err := s.decode(msg.Data)
		if err != nil {
			c.logger.Error("BUS_EVENT_DECODE_FAILED",
				"subject", s.subject,
				"owner", s.owner,
				"err", err,
			)
			return
		}
		s.handle(context.Background(), ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	c.logger.Info("BUS_SUBSCRIBED", "subject", s.subject, "owner", s.owner)
	return nil
}

func (c *NATSClient) FetchLastKnownNode(ctx context.Context, routingIdentifier string) (string, bool, error) {
	kv, err := c.keyValue()
	if err != nil {
		return "", false, err
	}

	entry, err := kv.Get(routingIdentifier)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fetch last known node: %w", err)
	}
	return string(entry.Value()), true, nil
}

func (c *NATSClient) RegisterParticipant(ctx context.Context, routingIdentifier string) error {
	kv, err := c.keyValue()
	if err != nil {
		return err
	}
	if _, err := kv.PutString(routingIdentifier, c.cfg.Node); err != nil {
		return fmt.Errorf("register participant: %w", err)
	}
	return nil
}

func (c *NATSClient) PassOverDirectMessage(ctx context.Context, node string, event *chatproto.ParticipantPassOver) error {
	conn := c.connection()
	if conn == nil {
		return ErrDisconnected
	}
	if err := conn.Publish(PassOverSubject(node), event.Marshal()); err != nil {
		return fmt.Errorf("pass over to %s: %w", node, err)
	}
	return nil
}

func (c *NATSClient) FetchDetails(ctx context.Context, identifier string) (*chatproto.Details, error) {
	conn := c.connection()
	if conn == nil {
		return nil, ErrDisconnected
	}

	req := &chatproto.DetailsRequest{Identifier: identifier}
	msg, err := conn.Request(SubjectUserDetails, req.Marshal(), detailsRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("details request: %w", err)
	}

	details := new(chatproto.Details)
	if err := details.Unmarshal(msg.Data); err != nil {
		return nil, fmt.Errorf("details decode: %w", err)
	}
	return details, nil
}

func (c *NATSClient) AnnounceNodeJoined(ctx context.Context) error {
	conn := c.connection()
	if conn == nil {
		return ErrDisconnected
	}
	joined := &chatproto.NodeJoined{Identifier: c.cfg.Node}
	if err := conn.Publish(SubjectNodeJoined, joined.Marshal()); err != nil {
		return fmt.Errorf("announce node: %w", err)
	}
	return nil
}

func (c *NATSClient) Connected() bool {
	conn := c.connection()
	return conn != nil && conn.IsConnected()
}

func (c *NATSClient) connection() *nats.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil
	}
	return c.conn
}
