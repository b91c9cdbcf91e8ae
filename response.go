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

import (
	"fmt"
	"time"
)

/*WorkState tracks a work item through its life cycle. Transitions only run
forward: ready, running, then finished or aborted.*/
type WorkState int

const (
	//WorkStateIdle is the zero value of an unused Context.
	WorkStateIdle WorkState = iota
	//WorkStateReady means the item is queued and has not begun sending.
	WorkStateReady
	//WorkStateRunning means the item is the current work.
	WorkStateRunning
	//WorkStateFinish means the item completed and its code is final.
	WorkStateFinish
	//WorkStateAbort means the item was cancelled.
	WorkStateAbort
)

//String implements the Stringer interface
func (s WorkState) String() string {
	switch s {
	case WorkStateIdle:
		return "idle"
	case WorkStateReady:
		return "ready"
	case WorkStateRunning:
		return "running"
	case WorkStateFinish:
		return "finish"
	case WorkStateAbort:
		return "abort"
	}
	return "unknown"
}

/*Priority selects which of the two FIFOs a work item joins. The dispatcher
always drains high priority work before looking at low priority work, but
never preempts mid-command.*/
type Priority int

const (
	//PriorityLow is the default.
	PriorityLow Priority = iota
	//PriorityHigh queues ahead of all low priority work.
	PriorityHigh
)

/*Callback receives the completion of a unit of work. It runs on the polling
task, after the work reached its final state and before the next item's send
step begins.*/
type Callback func(*Response)

/*
Response is what completion callbacks (and the adapter Error hook) receive.

Buf is the raw receive buffer content at completion time; it is only valid for
the duration of the callback - the dispatcher clears the buffer when the next
command starts. Prefix and Suffix alias into Buf at the match positions when
Code is RespOK, and alias the buffer start when the respective anchor was not
configured.
*/
type Response struct {
	At     *At         //Object the work ran on
	Params interface{} //User parameters (copied from Attr.Params)
	Code   RespCode    //Final response code
	Buf    []byte      //Raw receive buffer
	Prefix []byte      //Buf sliced at the prefix match
	Suffix []byte      //Buf sliced at the suffix match
}

//String implements the Stringer interface
func (r *Response) String() string {
	return fmt.Sprintf("Response> Code: %v\tRx Bytes: %q", r.Code, r.Buf)
}

/*
Attr carries the recognized per-command options. The zero value is usable:
enqueue normalizes a zero Timeout to DefTimeout. Note that an empty Suffix
means "no suffix required" (the command then completes ok on its first receive
poll unless the error token has arrived), which is not the same as the
DefaultAttr suffix of "OK".
*/
type Attr struct {
	Ctx      *Context      //Optional context for poll-style observation
	Params   interface{}   //Opaque value passed through to callbacks
	Prefix   string        //Response prefix anchor; empty means not required
	Suffix   string        //Response suffix anchor; empty means not required
	Callback Callback      //Completion callback
	Timeout  time.Duration //Per attempt timeout; 0 means DefTimeout
	Retry    int           //Re-sends allowed on error or timeout; for SendMultiline, attempts per step on error
	Priority Priority      //Queue selection
}

/*DefaultAttr returns the package default attributes: suffix "OK", DefTimeout,
DefRetry, low priority.*/
func DefaultAttr() Attr {
	return Attr{
		Suffix:   DefRespOK,
		Timeout:  DefTimeout,
		Retry:    DefRetry,
		Priority: PriorityLow,
	}
}

/*
Context is a caller owned record for observing a work item without callbacks.
The dispatcher mirrors the item's state and code into it as they change, and
copies the response bytes into its buffer (up to capacity) on completion.
Poll IsFinish, then read Result and Resp.
*/
type Context struct {
	state   WorkState
	code    RespCode
	resplen int
	respbuf []byte
}

/*NewContext returns a Context whose response copy holds up to bufsize bytes.
A bufsize of 0 disables the response copy but still mirrors state and code.*/
func NewContext(bufsize int) *Context {
	ctx := &Context{}
	if bufsize > 0 {
		ctx.respbuf = make([]byte, bufsize)
	}
	return ctx
}

/*Attach hooks the context to an attribute set, replacing any previous hook.*/
func (c *Context) Attach(attr *Attr) {
	attr.Ctx = c
}

/*State reports the mirrored work state.*/
func (c *Context) State() WorkState {
	return c.state
}

/*IsBusy is true while the work is queued or running.*/
func (c *Context) IsBusy() bool {
	return c.state == WorkStateReady || c.state == WorkStateRunning
}

/*IsFinish is true once the work reached a terminal state and Result is valid.*/
func (c *Context) IsFinish() bool {
	return c.state > WorkStateRunning
}

/*Result reports the mirrored response code.*/
func (c *Context) Result() RespCode {
	return c.code
}

/*Resp returns the copied response bytes from the last completion.*/
func (c *Context) Resp() []byte {
	return c.respbuf[:c.resplen]
}

func (c *Context) mirror(state WorkState, code RespCode) {
	c.state = state
	c.code = code
}

func (c *Context) copyResp(buf []byte) {
	if c.respbuf == nil {
		return
	}
	n := len(buf)
	if n > len(c.respbuf) {
		n = len(c.respbuf)
	}
	c.resplen = copy(c.respbuf[:n], buf)
}
