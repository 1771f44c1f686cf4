package ipcbridge

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"

	"fluxdl/internal/dlerror"
)

// Handler is invoked for each DownloadRequest the bridge receives. It
// runs on the connection's own goroutine, so a slow handler only stalls
// that one client.
type Handler func(DownloadRequest)

// Bridge listens for local IPC connections and dispatches download
// requests to a Handler. Ping messages are acknowledged implicitly by
// the connection staying open; they exist only so a client can verify
// the socket is alive before sending a real request.
type Bridge struct {
	logger  *slog.Logger
	handler Handler
	ln      net.Listener
}

func New(logger *slog.Logger, handler Handler) *Bridge {
	return &Bridge{logger: logger, handler: handler}
}

// Start binds the platform endpoint and serves connections in the
// background until Stop is called.
func (b *Bridge) Start() error {
	ln, err := listen()
	if err != nil {
		return dlerror.Wrap(dlerror.Network, "ipc bridge failed to bind "+endpointName(), err)
	}
	b.ln = ln
	b.logger.Info("ipc bridge listening", "endpoint", endpointName())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return // listener closed by Stop
			}
			go b.handleConn(conn)
		}
	}()
	return nil
}

func (b *Bridge) Stop() error {
	if b.ln == nil {
		return nil
	}
	return b.ln.Close()
}

func (b *Bridge) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			b.logger.Warn("failed to decode ipc message", "error", err)
			continue
		}

		switch msg.Type {
		case MessageDownloadRequest:
			if msg.Request == nil {
				b.logger.Warn("download_request message missing request payload")
				continue
			}
			b.handler(*msg.Request)
		case MessagePing:
			// nothing to do, the open connection is the acknowledgement
		default:
			b.logger.Warn("unknown ipc message type", "type", msg.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		b.logger.Warn("ipc connection read error", "error", err)
	}
}
