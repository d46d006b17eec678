// Package alpnfix turns off grpc-go's ALPN enforcement, which rejects nodes served behind
// proxies that do not negotiate h2. An explicit GRPC_ENFORCE_ALPN_ENABLED wins.
// Import with blank identifier before any grpc imports: _ "github.com/manifest-network/ibcsend/internal/alpnfix"
package alpnfix

import "os"

// EnvVar is read by grpc-go when its transport package initializes.
const EnvVar = "GRPC_ENFORCE_ALPN_ENABLED"

func init() {
	Apply()
}

// Apply disables ALPN enforcement unless the environment already decides it.
func Apply() {
	if _, ok := os.LookupEnv(EnvVar); ok {
		return
	}
	os.Setenv(EnvVar, "false")
}
