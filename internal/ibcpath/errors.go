package ibcpath

import (
	"errors"
	"fmt"

	"github.com/manifest-network/ibcsend/internal/chain"
)

// ChannelNotOpenError is returned when the source channel end is not in the Open state.
type ChannelNotOpenError struct {
	PortID    string
	ChannelID string
	ChainID   string
	State     chain.State
}

func (e *ChannelNotOpenError) Error() string {
	return fmt.Sprintf("the requested port/channel ('%s'/'%s') on chain id '%s' is in state '%s'; expected 'open' state",
		e.PortID, e.ChannelID, e.ChainID, e.State)
}

// MissingConnectionHopError is returned when a channel end lists no connection hops.
type MissingConnectionHopError struct {
	PortID    string
	ChannelID string
	ChainID   string
}

func (e *MissingConnectionHopError) Error() string {
	return fmt.Sprintf("could not retrieve the connection hop underlying port/channel '%s'/'%s' on chain '%s'",
		e.PortID, e.ChannelID, e.ChainID)
}

// ChainMismatchError is returned when the client underneath the channel tracks a chain other
// than the requested destination.
type ChainMismatchError struct {
	PortID          string
	ChannelID       string
	SrcChainID      string
	ActualChainID   string
	ExpectedChainID string
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("the requested port/channel ('%s'/'%s') provides a path from chain '%s' to chain '%s' "+
		"(not to the destination chain '%s'). Bailing due to mismatching arguments.",
		e.PortID, e.ChannelID, e.SrcChainID, e.ActualChainID, e.ExpectedChainID)
}

// FrozenClientError is returned when the client underneath the channel has been frozen after
// misbehaviour and can no longer verify packets.
type FrozenClientError struct {
	ClientID string
	ChainID  string
}

func (e *FrozenClientError) Error() string {
	return fmt.Sprintf("client '%s' tracking chain '%s' is frozen", e.ClientID, e.ChainID)
}

// Step names one query of the verification pipeline.
type Step string

const (
	StepChannel    Step = "channel"
	StepConnection Step = "connection"
	StepClient     Step = "client state"
)

// QueryError wraps a failed chain query with the step it belongs to.
type QueryError struct {
	Step Step
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Step, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Reason classifies a verification outcome into a short label, "ok" for nil.
func Reason(err error) string {
	var (
		notOpen  *ChannelNotOpenError
		noHop    *MissingConnectionHopError
		mismatch *ChainMismatchError
		frozen   *FrozenClientError
		query    *QueryError
	)

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &notOpen):
		return "channel_not_open"
	case errors.As(err, &noHop):
		return "no_hop"
	case errors.As(err, &mismatch):
		return "mismatch"
	case errors.As(err, &frozen):
		return "frozen"
	case errors.As(err, &query):
		return "query_error"
	default:
		return "error"
	}
}
