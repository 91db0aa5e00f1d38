// Package preflight provides readiness checks for the paths, tools and
// devices the appliance depends on.
//
// These checks run in two contexts:
//   - The appliance runs RunAll at startup and logs every failing check.
//     Failures are warnings: a missing camera head must not stop recording.
//   - The CLI "drip status" command renders the same results as a table.
package preflight
