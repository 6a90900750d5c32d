package cmd

import "github.com/judepayne/gopods/pod/transport"

func loadMode() transport.Mode {
	if flagSocket {
		return transport.ModeSocket
	}
	return transport.ModeStdio
}
