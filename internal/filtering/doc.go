// Package filtering decides which catalog entries the host loads.
//
// Entries are matched on two axes, both configured with include and exclude
// lists under catalog.filter:
//
//   - names: glob patterns matched against the entry's name, e.g. "reddit-*".
//     '*' also matches '/'.
//   - projects: exact project slugs the entry reports into.
//
// On each axis an exclude match wins, then an include match admits, and a
// non-empty include list with no match rejects. With no lists everything is
// admitted. An entry must pass both axes.
//
// Dev mode never consults the filter; the configured dev source always loads.
package filtering
