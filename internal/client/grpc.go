package client

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCClient wraps a node connection. Callers pass a context to every call.
type GRPCClient struct {
	Conn *grpc.ClientConn
}

// NewGRPCClient creates a client for the node at address. Addresses prefixed with https://
// use TLS; anything else (bare host:port or http://) is dialed in plaintext.
func NewGRPCClient(address string) (*GRPCClient, error) {
	target, creds := transportFor(address)

	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(creds),
		// SDK messages carry gogoproto custom types the default codec cannot marshal.
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec.NewProtoCodec(codectypes.NewInterfaceRegistry()).GRPCCodec())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", address, err)
	}

	return &GRPCClient{Conn: conn}, nil
}

// Close closes the underlying connection.
func (c *GRPCClient) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

func transportFor(address string) (string, credentials.TransportCredentials) {
	switch {
	case strings.HasPrefix(address, "https://"):
		return strings.TrimPrefix(address, "https://"), credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	case strings.HasPrefix(address, "http://"):
		return strings.TrimPrefix(address, "http://"), insecure.NewCredentials()
	default:
		return address, insecure.NewCredentials()
	}
}
