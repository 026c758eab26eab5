// Package dblock serializes test binaries that share one Postgres database.
package dblock

import (
	"net"
	"os"
	"time"
)

const lockAddr = "127.0.0.1:45432"

// Acquire blocks until no other test binary holds the lock and returns the
// release func. Without DATABASE_URL there is nothing to share, so it returns
// immediately.
func Acquire() func() {
	if os.Getenv("DATABASE_URL") == "" {
		return func() {}
	}
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
