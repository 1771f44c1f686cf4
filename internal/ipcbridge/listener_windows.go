//go:build windows

package ipcbridge

import (
	"net"

	"github.com/Microsoft/go-winio"
)

func listen() (net.Listener, error) {
	return winio.ListenPipe(windowsPipeName, nil)
}

func endpointName() string { return windowsPipeName }
