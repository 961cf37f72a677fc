// Package preflight provides readiness checks for the filesystem paths,
// listener address, and database endpoint devopsmirror depends on.
//
// These checks run in two contexts:
//   - The server runs RunAll before acquiring its lock and refuses to start
//     when any check fails.
//   - The CLI "devopsmirror health" command prints the same results when no
//     running server answers.
package preflight
