/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

// Tunnel is the bidirectional message channel to one watcher. The engine
// never constructs or owns a Tunnel; it is handed one through a
// TunnelFinder at each call (spec §5 "Tunnel registry").
type Tunnel interface {
	// SendMessage delivers a server->client Update frame.
	SendMessage(msg string) error
	// SendState delivers a server->client Sync frame.
	SendState(msg string) error
	// Close tears down the underlying transport.
	Close()
}

// TunnelFinder resolves a watcher id to its live Tunnel, if any. Reads the
// Manager's tunnel registry without acquiring the Game lock.
type TunnelFinder func(id Id) (Tunnel, bool)
