// Package profile resolves where a package manager keeps its configuration
// file and reads or rewrites that file. A manager's candidates form an ordered
// path list: reads use the first path that exists, writes always target the
// first entry.
package profile
