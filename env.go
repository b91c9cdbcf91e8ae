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
	"bytes"
	"fmt"
	"time"
)

/*
Env is the public polling environment handed to user work handlers and custom
senders. I, J and State are scratch variables zeroed whenever a new work item
starts; the state machines use them too (the command machine counts re-sends
in I, the multi-line machine keeps the step index in I and the per-step error
count in J), so general work owns them only for its own lifetime. An Env borrows
the current work and must not be retained beyond the poll tick that delivered
it.
*/
type Env struct {
	I, J, State int
	Params      interface{} //User parameters (from Attr.Params)

	at *At
}

/*NextWait delays the next invocation of the current general work by d. The
delay takes effect exactly once.*/
func (e *Env) NextWait(d time.Duration) {
	e.at.nextDelay = d
	e.at.delayStart = e.at.adap.now()
	e.at.adap.debug("Next wait:%d\r\n", d/time.Millisecond)
}

/*ResetTimer restarts the shared work timer consulted by IsTimeout.*/
func (e *Env) ResetTimer() {
	e.at.timer = e.at.adap.now()
}

/*IsTimeout reports whether more than d has elapsed since the last ResetTimer.*/
func (e *Env) IsTimeout(d time.Duration) bool {
	return e.at.adap.now().Sub(e.at.timer) > d
}

/*
Println formats a command line into the bounded render scratch, clears the
receive buffer, and writes the line followed by CRLF. The format verbs are
the fmt ones (%d, %s, %x, %c and friends); renders longer than MaxCmdLen are
truncated.
*/
func (e *Env) Println(format string, args ...interface{}) {
	e.at.sendLine(format, args...)
}

/*RecvBuf returns the live receive buffer content. The slice aliases the
internal buffer and is invalidated by RecvClr or the next command.*/
func (e *Env) RecvBuf() []byte {
	return e.at.recvbuf[:e.at.recvCnt]
}

/*RecvLen reports the number of buffered response bytes.*/
func (e *Env) RecvLen() int {
	return e.at.recvCnt
}

/*RecvClr clears the receive buffer.*/
func (e *Env) RecvClr() {
	e.at.recvCnt = 0
}

/*Contains reports whether the receive buffer currently holds str.*/
func (e *Env) Contains(str string) bool {
	return bytes.Contains(e.at.recvbuf[:e.at.recvCnt], []byte(str))
}

/*Disposing is true once the current work has been aborted; long running
general work should check it and wind down.*/
func (e *Env) Disposing() bool {
	if e.at.cursor == nil {
		return true
	}
	return e.at.cursor.state == WorkStateAbort
}

/*Finish ends the current work with the given code, regardless of what the
work handler returns this tick.*/
func (e *Env) Finish(code RespCode) {
	if e.at.cursor != nil {
		updateWorkState(e.at.cursor, WorkStateFinish, code)
	}
}

/*
sendLine renders a command into the bounded scratch and sends it with CRLF.
The render scratch is charged against the memory ceiling for the duration of
the call, as every other core allocation is.
*/
func (a *At) sendLine(format string, args ...interface{}) {
	if !coreMem.acquire(MaxCmdLen) {
		a.adap.debug("Memory ceiling reached when send...\r\n")
		return
	}
	defer coreMem.release(MaxCmdLen)
	line := fmt.Sprintf(format, args...)
	if len(line) > MaxCmdLen {
		line = line[:MaxCmdLen]
	}
	//Clear receive buffer.
	a.recvCnt = 0
	a.sendData([]byte(line))
	a.sendData(crlf)
	a.adap.debug("->\r\n%s\r\n", line)
}

var crlf = []byte("\r\n")

func (a *At) sendData(p []byte) {
	a.adap.Write(p)
}

/*sendCmdline writes cmd followed by CRLF.*/
func (a *At) sendCmdline(cmd string) {
	if cmd == "" {
		return
	}
	a.adap.Write([]byte(cmd))
	a.adap.Write(crlf)
	a.adap.debug("->\r\n%s\r\n", cmd)
}
