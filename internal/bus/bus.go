/*
Package bus connects the node to the cluster-wide publish/subscribe
fabric.

The contract is deliberately narrow: components register typed
subscription handlers (applied at connect time and re-established by the
transport on reconnect), publish pass-over events to peer nodes, and
resolve which node last claimed a routing identity. A fake variant backs
the test suites without touching a network.
*/
package bus

import (
	"context"
	"errors"

	"github.com/chatfabric/chat-node/internal/chatproto"
)

// Subjects used by the core. The slash is a literal subject character.
const (
	// SubjectUserDetails serves request/reply participant profile lookups
	// when the account service is reached over the bus instead of HTTP.
	SubjectUserDetails = "v1/account-service/users/details"

	// SubjectNodeJoined carries advisory node-arrival announcements.
	SubjectNodeJoined = "v1/node/joined"
)

// PassOverSubject names the pass-over inbox of one node.
func PassOverSubject(node string) string {
	return "v1/node/" + node + "/participants/pass-over"
}

// ErrDisconnected reports an operation attempted while the bus link is
// down. Callers translate it into user-visible delivery failures.
var ErrDisconnected = errors.New("bus unavailable")

// Event is a decoded bus payload.
type Event = any

// DecoderFunc turns raw subject bytes into a typed Event.
type DecoderFunc func(data []byte) (Event, error)

// HandlerFunc consumes one decoded Event. Handlers run on the bus
// client's callback path and must not block for long.
type HandlerFunc func(ctx context.Context, ev Event)

// Client is the node-facing contract of the fabric bus.
type Client interface {
	// StartUp connects to the configured cluster. Safe to call with
	// subscriptions already registered; they are applied on connect.
	StartUp(ctx context.Context) error

	// Shutdown drains and closes the link.
	Shutdown(ctx context.Context) error

	// RegisterSubscriptionHandler declares that frames published on
	// subject decode via decode and dispatch to handle. Owner is a label
	// for logs. May be called before or after StartUp.
	RegisterSubscriptionHandler(subject string, decode DecoderFunc, handle HandlerFunc, owner string)

	// FetchLastKnownNode reports which node last claimed a routing
	// identity, if any node has.
	FetchLastKnownNode(ctx context.Context, routingIdentifier string) (node string, ok bool, err error)

	// RegisterParticipant claims a routing identity for this node.
	RegisterParticipant(ctx context.Context, routingIdentifier string) error

	// PassOverDirectMessage forwards a direct message to the node that
	// owns the target participant.
	PassOverDirectMessage(ctx context.Context, node string, event *chatproto.ParticipantPassOver) error

	// FetchDetails resolves a participant profile over the bus
	// request/reply path.
	FetchDetails(ctx context.Context, identifier string) (*chatproto.Details, error)

	// AnnounceNodeJoined publishes this node's arrival on the advisory
	// subject.
	AnnounceNodeJoined(ctx context.Context) error

	// Connected reports whether the link is currently up.
	Connected() bool
}

type subscription struct {
	subject string
	owner   string
	decode  DecoderFunc
	handle  HandlerFunc
}
