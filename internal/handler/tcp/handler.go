/*
Package tcp speaks the device-facing framed protocol over raw sockets.

Each accepted socket gets a Conn: a reader goroutine that decodes frames
and dispatches them by protocol state, and a writer goroutine that owns
the socket's write side. A connection starts Pending and serves nothing
but identification; once the registry verifies a token the connection is
promoted and the full request surface opens. Protocol violations close
the session silently, while refusals the client can act on are answered
in-band before the close.
*/
package tcp

import (
	"context"
	"log/slog"
	"net"

	"github.com/chatfabric/chat-node/internal/domain/registry"
	"github.com/chatfabric/chat-node/internal/service"
)

// Handler turns accepted sockets into protocol sessions.
type Handler struct {
	logger    *slog.Logger
	registrar registry.Registrar
	relayer   service.Relayer
}

func NewHandler(logger *slog.Logger, registrar registry.Registrar, relayer service.Relayer) *Handler {
	return &Handler{
		logger:    logger,
		registrar: registrar,
		relayer:   relayer,
	}
}

// HandleConnection owns the socket until the session ends. The listener
// runs it on a dedicated goroutine, one per accepted connection.
func (h *Handler) HandleConnection(ctx context.Context, sock net.Conn) {
	conn := newConn(sock, h.logger, h.registrar, h.relayer)

	go conn.writeLoop()

	// The registry queues REQUEST_IDENTITY as the first frame out.
	h.registrar.OnConnect(conn)
	h.logger.Debug("CONNECTION_ACCEPTED", "conn_id", conn.UniqueID(), "remote", conn.RemoteAddr())

	conn.readLoop(ctx)
}
