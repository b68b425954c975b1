// Package session holds the browsing session: the open folder, the images
// listed from it so far and the thumbnail task currently being generated.
//
// The Manager moves through Idle, Scanning, Generating, Cancelling and
// Complete. Every task gets a fresh ID and only results carrying the active
// ID are passed on, so opening another folder or cancelling makes all
// outstanding work irrelevant at once.
package session
