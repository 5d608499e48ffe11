package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/chatproto"
	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/wire"
	"github.com/google/uuid"
)

// detailDeliveryFailed is the client-visible text for a message that
// could not reach its target. Device builds match on it.
const detailDeliveryFailed = "Failed to deliver the message :("

// RelayDirectMessage moves one direct message toward its target. Local
// targets are dispatched into their collective; remote targets are
// passed over the fabric. The sender's collective always learns the
// outcome through a Delivery frame.
func (s *ParticipantService) RelayDirectMessage(ctx context.Context, senderIdentifier string, payload []byte) error {
	msg := new(chatproto.DirectMessage)
	if err := msg.Unmarshal(payload); err != nil {
		return fmt.Errorf("direct message decode: %w", err)
	}

	// [MARKER] One UUID per relay; every Delivery for this message
	// echoes it.
	marker := uuid.NewString()
	target := msg.TargetIdentifier

	sender, err := s.Fetch(ctx, senderIdentifier)
	if err != nil {
		s.logger.Error("RELAY_SENDER_UNRESOLVED",
			"sender", senderIdentifier,
			"marker", marker,
			"err", err,
		)
		s.sendDeliveryState(ctx, senderIdentifier, target, marker, detailDeliveryFailed, chatproto.DeliveryFailed)
		return nil
	}

	if targetParticipant, local := s.localParticipant(target); local {
		s.relayLocal(ctx, sender, targetParticipant, msg, marker)
		return nil
	}

	s.relayRemote(ctx, sender, msg, marker)
	return nil
}

// relayLocal dispatches into the target's collective on this node.
func (s *ParticipantService) relayLocal(ctx context.Context, sender, target *model.Participant, msg *chatproto.DirectMessage, marker string) {
	now := time.Now().UTC()

	// The inbound copy names the sender's routing identity so receiving
	// devices can address a reply.
	inbound := &chatproto.DirectMessage{
		TargetIdentifier: sender.RoutingIdentifier,
		Payload:          msg.Payload,
		SentAt:           msg.SentAt,
	}

	err := s.dispatch(ctx, model.MessageDispatchCommand{
		ParticipantIdentifier: target.Identifier,
		Payload:               inbound.Marshal(),
		ResponseType:          wire.ResponseTypeReceiveDirectMessage,
		SentAt:                now,
		Marker:                marker,
	})
	if err != nil {
		// The collective dissolved between the route check and the
		// dispatch. The target counts as unreachable.
		s.logger.Warn("RELAY_LOCAL_DISPATCH_FAILED",
			"target", target.Identifier,
			"marker", marker,
			"err", err,
		)
		s.sendDeliveryState(ctx, sender.Identifier, target.RoutingIdentifier, marker, detailDeliveryFailed, chatproto.DeliveryFailed)
		return
	}

	s.persistRecord(ctx, model.DirectMessageRecord{
		Sender:     sender.RoutingIdentifier,
		Target:     target.RoutingIdentifier,
		Message:    msg.Payload,
		ReceivedAt: now,
		Node:       s.cfg.Node,
		Marker:     marker,
	})

	s.sendDeliveryState(ctx, sender.Identifier, target.RoutingIdentifier, marker, "", chatproto.DeliveryDelivered)
}

// relayRemote forwards toward whichever node last claimed the target's
// routing identity.
func (s *ParticipantService) relayRemote(ctx context.Context, sender *model.Participant, msg *chatproto.DirectMessage, marker string) {
	target := msg.TargetIdentifier

	node, ok, err := s.fabric.FetchLastKnownNode(ctx, target)
	if err != nil {
		s.logger.Error("ROUTE_LOOKUP_FAILED", "target", target, "marker", marker, "err", err)
		s.sendDeliveryState(ctx, sender.Identifier, target, marker, failureDetail(err), chatproto.DeliveryFailed)
		return
	}
	if !ok {
		s.sendDeliveryState(ctx, sender.Identifier, target, marker, detailDeliveryFailed, chatproto.DeliveryFailed)
		return
	}

	passOver := &chatproto.ParticipantPassOver{
		SenderIdentifier: sender.RoutingIdentifier,
		TargetIdentifier: target,
		OriginatingNode:  s.cfg.Node,
		Payload:          msg.Payload,
		Marker:           marker,
		Nickname:         sender.Nickname,
	}
	if err := s.fabric.PassOverDirectMessage(ctx, node, passOver); err != nil {
		s.logger.Error("PASS_OVER_FAILED", "target", target, "node", node, "marker", marker, "err", err)
		s.sendDeliveryState(ctx, sender.Identifier, target, marker, failureDetail(err), chatproto.DeliveryFailed)
		return
	}

	s.logger.Debug("MESSAGE_PASSED_OVER", "target", target, "node", node, "marker", marker)

	// The peer node does not acknowledge yet; SENT is the honest state.
	s.sendDeliveryState(ctx, sender.Identifier, target, marker, "", chatproto.DeliverySent)
}

// onPassOver receives direct messages forwarded by peer nodes.
func (s *ParticipantService) onPassOver(ctx context.Context, event *chatproto.ParticipantPassOver) {
	participant, ok := s.localParticipant(event.TargetIdentifier)
	if !ok {
		// Route table said this node, local state disagrees. Nothing to
		// answer back on yet; the message is dropped.
		s.logger.Warn("PASS_OVER_UNKNOWN_TARGET",
			"target", event.TargetIdentifier,
			"origin", event.OriginatingNode,
			"marker", event.Marker,
		)
		return
	}

	now := time.Now().UTC()
	inbound := &chatproto.DirectMessage{
		TargetIdentifier: event.SenderIdentifier,
		Payload:          event.Payload,
		SentAt:           chatproto.NewTimestamp(now),
	}

	err := s.dispatch(ctx, model.MessageDispatchCommand{
		ParticipantIdentifier: participant.Identifier,
		Payload:               inbound.Marshal(),
		ResponseType:          wire.ResponseTypeReceiveDirectMessage,
		SentAt:                now,
		Marker:                event.Marker,
	})
	if err != nil {
		s.logger.Warn("PASS_OVER_DISPATCH_FAILED",
			"target", participant.Identifier,
			"origin", event.OriginatingNode,
			"marker", event.Marker,
			"err", err,
		)
		return
	}

	s.persistRecord(ctx, model.DirectMessageRecord{
		Sender:     event.SenderIdentifier,
		Target:     event.TargetIdentifier,
		Message:    event.Payload,
		ReceivedAt: now,
		Node:       event.OriginatingNode,
		Marker:     event.Marker,
	})
}

// onNodeJoined refreshes this node's route claims so the newcomer's
// lookups resolve.
func (s *ParticipantService) onNodeJoined(ctx context.Context, event *chatproto.NodeJoined) {
	routes := s.RoutingIdentifiers()
	s.logger.Info("NODE_JOINED", "node", event.Identifier, "routes_refreshed", len(routes))

	for _, route := range routes {
		if err := s.fabric.RegisterParticipant(ctx, route); err != nil {
			s.logger.Warn("ROUTE_CLAIM_FAILED", "routing_identifier", route, "err", err)
		}
	}
}

// sendDeliveryState reports a relay outcome to every device of the
// sending participant.
func (s *ParticipantService) sendDeliveryState(ctx context.Context, participantIdentifier, targetRouting, marker, detail string, state chatproto.DeliveryState) {
	now := time.Now().UTC()
	delivery := &chatproto.Delivery{
		Message:          detail,
		State:            state,
		Marker:           marker,
		TargetIdentifier: targetRouting,
		SentAt:           chatproto.NewTimestamp(now),
	}

	err := s.dispatch(ctx, model.MessageDispatchCommand{
		ParticipantIdentifier: participantIdentifier,
		Payload:               delivery.Marshal(),
		ResponseType:          wire.ResponseTypeDeliveryState,
		SentAt:                now,
		Marker:                marker,
	})
	if err != nil {
		// Sender signed off mid-relay. The state is lost with them.
		s.logger.Debug("DELIVERY_STATE_DROPPED",
			"participant", participantIdentifier,
			"marker", marker,
			"state", state.String(),
			"err", err,
		)
	}
}

// persistRecord appends to the audit trail. Storage failures never gate
// delivery.
func (s *ParticipantService) persistRecord(ctx context.Context, record model.DirectMessageRecord) {
	if err := s.messages.AddMessage(ctx, record); err != nil {
		s.logger.Error("MESSAGE_PERSIST_FAILED",
			"target", record.Target,
			"marker", record.Marker,
			"err", err,
		)
	}
}

// failureDetail maps transport errors to the client-visible detail text.
func failureDetail(err error) string {
	if errors.Is(err, bus.ErrDisconnected) {
		return bus.ErrDisconnected.Error()
	}
	return detailDeliveryFailed
}
