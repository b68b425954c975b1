// Package tui is a terminal folder browser built on bubbletea.
//
// A Bridge receives session events as a render.Coordinator and forwards
// them to the running program; the Model applies them on the program
// goroutine, keeping a bounded render.Window of thumbnails. Keys: m loads
// the next page, esc cancels generation, q quits.
package tui
