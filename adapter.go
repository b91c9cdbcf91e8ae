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
	"io"
	"time"
)

//Package wide defaults. Commands that omit an Attr (or leave fields zeroed)
//pick these up.
const (
	//DefRespOK is the default success suffix.
	DefRespOK = "OK"
	//DefRespErr is the fixed error token scanned for in every response.
	DefRespErr = "ERROR"
	//DefTimeout is the default per-attempt response timeout.
	DefTimeout = 500 * time.Millisecond
	//DefRetry is the default number of re-sends on error or timeout.
	DefRetry = 2
	//URCTimeout bounds how long a partially matched URC frame may sit without
	//a terminator or full payload before the handler sees a timeout.
	URCTimeout = 500 * time.Millisecond
	//MaxCmdLen is the scratch size for rendering formatted commands; longer
	//renders are truncated.
	MaxCmdLen = 256
	//ListWorkCount is the maximum number of queued work items across both
	//priority queues.
	ListWorkCount = 32
	//URCEndMarks are the bytes that terminate a URC header line.
	URCEndMarks = ":,\n"
	//DefMemLimit is the default ceiling for live core allocations.
	DefMemLimit = 3 * 1024

	//minBufSize is the floor for both the receive and URC buffers.
	minBufSize = 32
	//readChunk is how much the poller pulls from the adapter per tick.
	readChunk = 64
	//retryDelay is the hold-off between an error response and the re-send.
	retryDelay = 100 * time.Millisecond
)

/*
Adapter is the immutable capability bundle the core uses to reach the outside
world. Write and Read are required and must be non-blocking: Read returning 0
means no bytes are available right now. Lock and Unlock, when both present,
bracket every queue mutation so producers may enqueue from other tasks. Error,
when present, is invoked each time the error token is matched (including a
match that a later retry recovers from) and once per timeout completion; an
error completion does not invoke it a second time. Debug, when
present, receives a printf style trace of the full AT exchange.

Now exists so embedders with their own notion of time (and tests) can supply
the clock; when nil the core uses time.Now.
*/
type Adapter struct {
	Lock   func()
	Unlock func()
	Write  func(p []byte) int
	Read   func(p []byte) int
	Error  func(*Response)
	Debug  func(format string, args ...interface{})
	Now    func() time.Time

	//RecvBufSize is the command response buffer size. Values below 32 are
	//raised to 32.
	RecvBufSize int
	//URCBufSize is the URC buffer size; 0 disables URC recognition entirely.
	URCBufSize int
}

/*
NewAdapter wraps any io.ReadWriter into an Adapter with the given buffer
sizes. Errors from the underlying stream are swallowed into zero counts, which
is the contract the poller expects from a non-blocking transport; pair this
with a Conn from Dial (whose reads carry a short deadline) or any other
ReadWriter that does not block.
*/
func NewAdapter(rw io.ReadWriter, recvBufSize, urcBufSize int) *Adapter {
	return &Adapter{
		Write: func(p []byte) int {
			n, _ := rw.Write(p)
			return n
		},
		Read: func(p []byte) int {
			n, _ := rw.Read(p)
			return n
		},
		RecvBufSize: recvBufSize,
		URCBufSize:  urcBufSize,
	}
}

func (a *Adapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Adapter) debug(format string, args ...interface{}) {
	if a.Debug != nil {
		a.Debug(format, args...)
	}
}

func (a *Adapter) lock() {
	if a.Lock != nil && a.Unlock != nil {
		a.Lock()
	}
}

func (a *Adapter) unlock() {
	if a.Lock != nil && a.Unlock != nil {
		a.Unlock()
	}
}
