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

import "container/list"

//workItemTag identifies a live work item handle.
const workItemTag = 0x2532

//workItemBase approximates the fixed footprint of one queued item for the
//memory accountant; payload bytes are charged on top.
const workItemBase = 64

/*workKind selects the state machine that drives an item.*/
type workKind int

const (
	kindGeneral workKind = iota //user polling work
	kindSingle                  //borrowed single line command
	kindMulti                   //borrowed command array
	kindCmd                     //owned formatted command bytes
	kindCustom                  //user sender function
	kindBuf                     //owned raw bytes, no terminator
)

/*WorkFunc is the polling handler for general work. It is invoked once per
poll tick with the shared environment and keeps running while it returns
false; returning true finishes the work with RespOK. Calling env.Finish ends
the work regardless of the return value.*/
type WorkFunc func(env *Env) bool

/*SenderFunc writes the outbound bytes for a custom-sender command. It runs in
the SEND step and is responsible for all writing; response matching proceeds
as for any other command.*/
type SenderFunc func(env *Env)

/*
workItem is one queued unit of outbound activity. The payload field used is
discriminated by kind. An item sits in exactly one of the two priority queues
from enqueue until recycle.
*/
type workItem struct {
	elem  *list.Element //queue linkage, set on submit
	attr  Attr
	magic uint16
	kind  workKind
	state WorkState
	code  RespCode
	cost  int //bytes charged to the memory accountant

	work   WorkFunc
	sender SenderFunc
	single string
	multi  []string
	buf    []byte
}

/*IsValidWork reports whether h is a live (not yet recycled) work item. The
public enqueue calls return only an error, not the item, so a value obtained
outside the package is always reported as not valid.*/
func IsValidWork(h interface{}) bool {
	it, ok := h.(*workItem)
	return ok && it != nil && it.magic == workItemTag
}

func updateWorkState(it *workItem, state WorkState, code RespCode) {
	it.state = state
	it.code = code
	if it.attr.Ctx != nil {
		it.attr.Ctx.mirror(state, code)
	}
}

/*
createWorkItem builds an item of the given kind, charging the memory
accountant and enforcing the queue cap. payload is copied for owned kinds
(kindCmd, kindBuf) and borrowed otherwise. Fails closed: on any refusal
nothing is charged and nothing is queued.
*/
func (a *At) createWorkItem(kind workKind, attr *Attr, payload []byte) (*workItem, error) {
	cost := workItemBase + len(payload)
	if !coreMem.acquire(cost) {
		a.adap.debug("Memory ceiling reached, list count:%d\r\n", a.listCnt)
		return nil, ErrNoMemory
	}
	if a.listCnt >= ListWorkCount {
		a.adap.debug("Work queue full\r\n")
		coreMem.release(cost)
		return nil, ErrQueueFull
	}
	it := &workItem{magic: workItemTag, kind: kind, state: WorkStateReady, cost: cost}
	if attr == nil {
		def := DefaultAttr()
		attr = &def
	}
	it.attr = *attr
	if it.attr.Timeout == 0 {
		it.attr.Timeout = DefTimeout
	}
	if kind == kindCmd || kind == kindBuf {
		it.buf = append([]byte(nil), payload...)
	}
	if it.attr.Ctx != nil {
		it.attr.Ctx.mirror(WorkStateReady, RespOK)
	}
	return it, nil
}

/*submitWorkItem links the item onto its priority queue under the adapter lock.*/
func (a *At) submitWorkItem(it *workItem) {
	a.adap.lock()
	if it.attr.Priority == PriorityHigh {
		it.elem = a.hlist.PushBack(it)
	} else {
		it.elem = a.llist.PushBack(it)
	}
	a.listCnt++
	a.adap.unlock()
}

/*addWorkItem is create + submit; the common enqueue path.*/
func (a *At) addWorkItem(kind workKind, attr *Attr, payload []byte) (*workItem, error) {
	if a.disposed {
		return nil, ErrDisposed
	}
	it, err := a.createWorkItem(kind, attr, payload)
	if err != nil {
		return nil, err
	}
	a.submitWorkItem(it)
	return it, nil
}

func workItemDestroy(it *workItem) {
	if it == nil {
		return
	}
	it.magic = 0
	coreMem.release(it.cost)
}

/*recycleWorkItem unlinks a finished item and returns its memory.*/
func (a *At) recycleWorkItem(it *workItem) {
	a.adap.lock()
	if a.listCnt > 0 {
		a.listCnt--
	}
	if it.elem != nil {
		if it.attr.Priority == PriorityHigh {
			a.hlist.Remove(it.elem)
		} else {
			a.llist.Remove(it.elem)
		}
		it.elem = nil
	}
	workItemDestroy(it)
	a.adap.unlock()
}

/*destroyAllWork drains a queue, destroying every member. Used on Destroy.*/
func (a *At) destroyAllWork(l *list.List) {
	a.adap.lock()
	for e := l.Front(); e != nil; {
		next := e.Next()
		it := e.Value.(*workItem)
		l.Remove(e)
		it.elem = nil
		workItemDestroy(it)
		e = next
	}
	a.listCnt = 0
	a.adap.unlock()
}

/*
AbortAll marks every queued work item, including the one currently running,
with state abort and code abort. The poller observes the aborted state at the
start of its next tick and finalizes each item without (further) sending; the
completion callbacks then fire with RespAbort.
*/
func (a *At) AbortAll() {
	a.adap.lock()
	for e := a.hlist.Front(); e != nil; e = e.Next() {
		updateWorkState(e.Value.(*workItem), WorkStateAbort, RespAbort)
	}
	for e := a.llist.Front(); e != nil; e = e.Next() {
		updateWorkState(e.Value.(*workItem), WorkStateAbort, RespAbort)
	}
	a.adap.unlock()
}
