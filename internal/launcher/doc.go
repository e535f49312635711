// Package launcher runs external programs for the shell.
//
// Foreground launches block until the child exits. Background launches
// return as soon as the child has started; a goroutine per child waits on
// it so finished children are reaped without the caller ever inspecting
// their status.
package launcher
