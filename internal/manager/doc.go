// Package manager reads and rewrites the mirror settings of each supported
// package manager.
//
// Every manager pairs a mirror type with a format: cargo edits TOML tables,
// maven splices the <mirrors> region of settings.xml, gradle regenerates an
// init script, npm rewrites registry= lines, pip edits two INI keys and
// docker edits the registry-mirrors array of daemon.json. A single generic
// core drives all of them, so get, set, remove and reset behave the same way
// whichever manager is targeted. Only the mirror related part of a file is
// changed. Text formats keep the rest byte for byte; cargo configs are
// re-encoded, so other settings survive with sorted keys and no comments.
package manager
