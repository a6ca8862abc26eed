package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node    *snowflake.Node
	once    sync.Once
	initErr error
)

// Init sets the snowflake node ID. Only the first call has any effect.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New returns a time-ordered unique ID. Drafts use these as their handle in
// callback tokens. Falls back to node 1 when Init was never called.
func New() int64 {
	if err := Init(1); err != nil || node == nil {
		panic("id: snowflake node unavailable")
	}
	return node.Generate().Int64()
}
