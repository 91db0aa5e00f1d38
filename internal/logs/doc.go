// Package logs reads the appliance log for `drip logs`.
//
// Only newline-terminated lines are returned, so a line the appliance is still
// writing is picked up whole on the next read. Follow notices when drip.log is
// repointed at a new run's file and starts that file from the top.
package logs
