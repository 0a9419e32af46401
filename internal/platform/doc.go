// Package platform reports which operating-system dependent features are
// available. Callers pass the GOOS they care about so behavior can be
// exercised for other platforms in tests; Current returns the running one.
package platform
