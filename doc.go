// Package ringpool offers a fixed-capacity concurrent ring queue and a fixed-size
// worker(goroutine) pool built on top of it, which returns task results through futures.
//
// The queue wakes parked producers and consumers through a channel broadcast instead
// of spinning, and only touches a mutex when somebody is actually waiting.
package ringpool
