// Package guard stops a running application before its files are replaced.
//
// Matching processes get SIGTERM, then the guard polls the process table
// until they are gone. After ShutdownTimeout it escalates to SIGKILL and
// waits KillTimeout more before giving up.
package guard
