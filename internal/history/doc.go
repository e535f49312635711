// Package history provides the per-identity command history ring.
//
// A Ring keeps the last N submitted lines in a fixed-size circular buffer.
// Appending to a full ring silently evicts the oldest line. Navigation
// helpers expose slot indices so a line editor can walk the ring with the
// cursor keys without ever stepping past the oldest or newest entry.
//
// Lines that are meta-commands ("history", "!!", anything starting with
// "!") are never recorded.
//
// Example Usage:
//
//	ring := history.NewRing(10, 79)
//	ring.Append("ls -la")
//	idx := ring.Newest()
//	idx = ring.Navigate(history.Older, idx)
//	fmt.Println(ring.At(idx))
package history
