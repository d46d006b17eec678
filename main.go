package main

import (
	_ "github.com/manifest-network/ibcsend/internal/alpnfix" // Disable ALPN enforcement for servers that don't support it

	"github.com/manifest-network/ibcsend/cmd/ibcsend"
)

func main() {
	ibcsend.Execute()
}
