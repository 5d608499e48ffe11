package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatfabric/chat-node/internal/chatproto"
)

// Interface guard
var _ Client = (*Fake)(nil)

// PassOverRecord captures one forwarded message for assertions.
type PassOverRecord struct {
	Node  string
	Event *chatproto.ParticipantPassOver
}

// Fake is the in-memory bus used by tests. It records subscriptions and
// publishes, answers lookups from seeded maps, and never touches a
// network. Inject drives registered handlers exactly like a delivered
// frame would.
type Fake struct {
	node string

	mu        sync.Mutex
	connected bool
	subs      []subscription
	nodes     map[string]string
	details   map[string]*chatproto.Details
	passOvers []PassOverRecord
	announced int
}

func NewFake(node string) *Fake {
	return &Fake{
		node:    node,
		nodes:   make(map[string]string),
		details: make(map[string]*chatproto.Details),
	}
}

func (f *Fake) StartUp(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *Fake) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) RegisterSubscriptionHandler(subject string, decode DecoderFunc, handle HandlerFunc, owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, subscription{subject: subject, owner: owner, decode: decode, handle: handle})
}

// Inject delivers raw payload bytes to every handler registered on the
// subject, running each registered decoder exactly as the live client
// would.
func (f *Fake) Inject(subject string, data []byte) error {
	f.mu.Lock()
	var matched []subscription
	for _, s := range f.subs {
		if s.subject == subject {
			matched = append(matched, s)
		}
	}
	f.mu.Unlock()

	if len(matched) == 0 {
		return fmt.Errorf("no subscription for subject %q", subject)
	}

	for _, s := range matched {
		ev, err := s.decode(data)
		if err != nil {
			return fmt.Errorf("decode on %q: %w", subject, err)
		}
		s.handle(context.Background(), ev)
	}
	return nil
}

func (f *Fake) FetchLastKnownNode(ctx context.Context, routingIdentifier string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return "", false, ErrDisconnected
	}
	node, ok := f.nodes[routingIdentifier]
	return node, ok, nil
}

func (f *Fake) RegisterParticipant(ctx context.Context, routingIdentifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrDisconnected
	}
	f.nodes[routingIdentifier] = f.node
	return nil
}

func (f *Fake) PassOverDirectMessage(ctx context.Context, node string, event *chatproto.ParticipantPassOver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrDisconnected
	}
	f.passOvers = append(f.passOvers, PassOverRecord{Node: node, Event: event})
	return nil
}

func (f *Fake) FetchDetails(ctx context.Context, identifier string) (*chatproto.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, ErrDisconnected
	}
	d, ok := f.details[identifier]
	if !ok {
		return nil, fmt.Errorf("no details responder for %q", identifier)
	}
	return d, nil
}

func (f *Fake) AnnounceNodeJoined(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrDisconnected
	}
	f.announced++
	return nil
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Test seams.

// SetConnected flips the simulated link state without going through the
// lifecycle methods.
func (f *Fake) SetConnected(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = up
}

// SeedLastKnownNode primes the routing table.
func (f *Fake) SeedLastKnownNode(routingIdentifier, node string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[routingIdentifier] = node
}

// SeedDetails primes the account-service responder.
func (f *Fake) SeedDetails(d *chatproto.Details) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[d.Identifier] = d
}

// PassOvers returns the forwarded messages recorded so far.
func (f *Fake) PassOvers() []PassOverRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PassOverRecord(nil), f.passOvers...)
}

// Announcements reports how many node-joined events were published.
func (f *Fake) Announcements() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.announced
}

// Subscriptions lists the registered subjects with their owners.
func (f *Fake) Subscriptions() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.subs))
	for _, s := range f.subs {
		out[s.subject] = s.owner
	}
	return out
}
