// Package probe measures how long a TCP connection to a mirror takes.
//
// A probe never fails: any resolution or connection problem is recorded as
// the Unreachable sentinel so callers can keep ranking the other mirrors.
package probe
