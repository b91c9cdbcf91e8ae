package atchat

/*
MIT License

Copyright (c) 2015-2017 University Corporation for Atmospheric Research

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

import "sync/atomic"

/*
memWatch tracks the bytes the core holds live (buffers, queued work items,
render scratch) against a hard ceiling. Acquire fails closed: a request that
would cross the ceiling is refused and nothing is recorded. Counters are
process wide, as every AT object shares the one budget.
*/
type memWatch struct {
	limit int64
	cur   int64
	max   int64
}

//coreMem is the package wide accountant backing MaxUsedMemory and
//CurUsedMemory.
var coreMem = memWatch{limit: DefMemLimit}

func (m *memWatch) acquire(nbytes int) bool {
	n := int64(nbytes)
	for {
		cur := atomic.LoadInt64(&m.cur)
		if cur+n > atomic.LoadInt64(&m.limit) {
			return false
		}
		if !atomic.CompareAndSwapInt64(&m.cur, cur, cur+n) {
			continue
		}
		for {
			max := atomic.LoadInt64(&m.max)
			if cur+n <= max || atomic.CompareAndSwapInt64(&m.max, max, cur+n) {
				return true
			}
		}
	}
}

func (m *memWatch) release(nbytes int) {
	atomic.AddInt64(&m.cur, -int64(nbytes))
}

//reset is test support: zeroes the counters and sets the ceiling to limit.
func (m *memWatch) reset(limit int64) {
	atomic.StoreInt64(&m.limit, limit)
	atomic.StoreInt64(&m.cur, 0)
	atomic.StoreInt64(&m.max, 0)
}

/*MaxUsedMemory reports the high water mark of live core allocations.*/
func MaxUsedMemory() int {
	return int(atomic.LoadInt64(&coreMem.max))
}

/*CurUsedMemory reports the bytes the core currently holds live.*/
func CurUsedMemory() int {
	return int(atomic.LoadInt64(&coreMem.cur))
}
