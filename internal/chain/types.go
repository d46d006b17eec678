package chain

import (
	"fmt"
	"time"
)

// State is the handshake state shared by channel and connection ends.
type State int

const (
	StateUninitialized State = iota
	StateInit
	StateTryOpen
	StateOpen
	StateClosed
	StateFlushing
	StateFlushComplete
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInit:
		return "Init"
	case StateTryOpen:
		return "TryOpen"
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	case StateFlushing:
		return "Flushing"
	case StateFlushComplete:
		return "FlushComplete"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Height is an IBC height: a revision number plus a block height within that revision.
type Height struct {
	RevisionNumber uint64
	RevisionHeight uint64
}

func (h Height) String() string {
	return fmt.Sprintf("%d-%d", h.RevisionNumber, h.RevisionHeight)
}

// ChannelEnd is a snapshot of one end of a channel as stored on a chain.
type ChannelEnd struct {
	PortID                string
	ChannelID             string
	State                 State
	Ordering              string
	Version               string
	ConnectionHops        []string
	CounterpartyPortID    string
	CounterpartyChannelID string
}

func (c ChannelEnd) IsOpen() bool {
	return c.State == StateOpen
}

// ConnectionEnd is a snapshot of a connection as stored on a chain.
type ConnectionEnd struct {
	ID       string
	ClientID string
	State    State
}

// ClientState is a snapshot of a light client: which chain it tracks and up to where.
type ClientState struct {
	ClientID     string
	ChainID      string
	LatestHeight Height
	Frozen       bool
}

// BlockInfo describes the latest block of a chain.
type BlockInfo struct {
	ChainID string
	Height  uint64
	Time    time.Time
}
