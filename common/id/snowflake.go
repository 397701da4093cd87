// Package id issues time-ordered identifiers for events that arrive without one.
package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.RWMutex
	node *snowflake.Node
)

// Init binds the generator to nodeID. The server and the worker use
// different node IDs so their identifiers never collide. Calling Init again
// with the node already set is a no-op.
func Init(nodeID int64) error {
	mu.Lock()
	defer mu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	node = n
	return nil
}

func current() *snowflake.Node {
	mu.RLock()
	defer mu.RUnlock()
	if node == nil {
		panic("id: Init was not called")
	}
	return node
}

// New returns the next identifier as an int64.
func New() int64 {
	return current().Generate().Int64()
}

// NewString returns the next identifier in base 10, the form stored on
// synthesized event IDs.
func NewString() string {
	return current().Generate().String()
}
