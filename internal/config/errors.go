package config

import "fmt"

// Side names which end of a transfer a chain id was given for.
type Side string

const (
	SideSource      Side = "source"
	SideDestination Side = "destination"
)

// MissingChainError is returned when a chain id has no entry in the configuration.
type MissingChainError struct {
	Side    Side
	ChainID string
}

func (e *MissingChainError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("missing configuration for chain '%s'", e.ChainID)
	}
	return fmt.Sprintf("missing configuration for %s chain '%s'", e.Side, e.ChainID)
}
