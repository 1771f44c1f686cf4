//go:build !windows

package ipcbridge

import (
	"net"
	"os"
)

func listen() (net.Listener, error) {
	if _, err := os.Stat(unixSocketPath); err == nil {
		_ = os.Remove(unixSocketPath)
	}
	return net.Listen("unix", unixSocketPath)
}

func endpointName() string { return unixSocketPath }
