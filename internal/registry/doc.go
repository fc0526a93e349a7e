// Package registry
// Author: momentics <momentics@gmail.com>
//
// Connection set of the event loop: maps peer descriptors to their state,
// keeps reactor membership in step with the map and owns peer buffers.
// Not safe for concurrent use; the event loop is its only caller.
package registry
