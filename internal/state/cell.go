// Package state 最新快照的持有者
package state

import "sync/atomic"

// Cell 单值原子槽：一个写者 Store，任意多个读者 Load
// 读者拿到的总是某次完整写入的值，不会看到写了一半的数据
type Cell[T any] struct {
	ptr atomic.Pointer[T]
}

// NewCell 创建空槽
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{}
}

// Store 整体替换当前值（后写覆盖先写）
func (c *Cell[T]) Store(v T) {
	c.ptr.Store(&v)
}

// Load 读取当前值；从未写入时返回零值和 false
func (c *Cell[T]) Load() (T, bool) {
	p := c.ptr.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
