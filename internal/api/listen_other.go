//go:build !linux && !windows

package api

import "net"

func reuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
