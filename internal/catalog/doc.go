// Package catalog holds the bundled lists of known mirrors for every
// supported package manager, plus the mirror each manager is switched to by
// "mir default". The JSON files are embedded at build time, validated against
// an embedded JSON schema and parsed once on first use.
package catalog
