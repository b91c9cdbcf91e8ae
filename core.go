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
	"container/list"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

//Command execution steps within a running work item.
const (
	statSend = iota
	statRecv
	statRetry
)

/*
At is the AT command communication manager. It owns the receive and URC
buffers and the two priority work queues, and is driven by calling Process
repeatedly from a single task. Enqueue calls (ExecCmd and friends) and
AbortAll may run from other tasks when the adapter supplies Lock and Unlock;
everything else belongs to the polling task.
*/
type At struct {
	adap   *Adapter
	env    Env
	cursor *workItem
	hlist  *list.List
	llist  *list.List
	clist  *list.List

	timer      time.Time
	nextDelay  time.Duration
	delayStart time.Time

	recvbuf   []byte
	recvCnt   int
	matchLen  int
	matchMask byte
	prefixAt  int
	suffixAt  int
	mlSuccess bool

	urcTbl           Subscriptions
	urcItem          *URCItem
	urcPrefixEnd     int
	urcbuf           []byte
	urcCnt           int
	urcTarget        int
	urcTimer         time.Time
	urcDisableWindow time.Duration
	urcEnable        bool
	urcMatch         bool

	listCnt  int
	bufCost  int
	enable   bool
	errOccur bool
	rawTrans bool
	disposed bool
	rawConf  *RawConfig
	userData interface{}
}

/*
New creates an AT object over the passed adapter. The adapter must be a
resident object: only its pointer is kept. Buffer sizes below 32 bytes are
raised to 32; a URC buffer size of 0 disables URC recognition. The buffers
are charged against the package memory ceiling, and New fails closed when the
budget cannot cover them.
*/
func New(adap *Adapter) (*At, error) {
	if adap == nil || adap.Write == nil || adap.Read == nil {
		return nil, errors.New("adapter requires both Read and Write")
	}
	recvSize := adap.RecvBufSize
	if recvSize < minBufSize {
		recvSize = minBufSize
	}
	urcSize := 0
	if adap.URCBufSize != 0 {
		urcSize = adap.URCBufSize
		if urcSize < minBufSize {
			urcSize = minBufSize
		}
	}
	if !coreMem.acquire(recvSize + urcSize) {
		return nil, ErrNoMemory
	}
	a := &At{
		adap:      adap,
		hlist:     list.New(),
		llist:     list.New(),
		recvbuf:   make([]byte, recvSize),
		bufCost:   recvSize + urcSize,
		prefixAt:  -1,
		suffixAt:  -1,
		enable:    true,
		urcEnable: true,
	}
	if urcSize > 0 {
		a.urcbuf = make([]byte, urcSize)
	}
	a.env.at = a
	return a, nil
}

/*
Destroy drains both queues without running their work and returns the buffer
memory to the package budget. Further use of the object is refused with
ErrDisposed. Destroy belongs to the polling task; producers must be quiesced
first.
*/
func (a *At) Destroy() {
	if a.disposed {
		return
	}
	a.destroyAllWork(a.hlist)
	a.destroyAllWork(a.llist)
	a.cursor = nil
	coreMem.release(a.bufCost)
	a.bufCost = 0
	a.disposed = true
}

/*Busy reports whether any work is queued or a URC frame is mid-reception.*/
func (a *At) Busy() bool {
	return a.hlist.Len() > 0 || a.llist.Len() > 0 || a.urcCnt != 0
}

/*SetEnable gates dispatch: while disabled, queued work stays queued and no
new item starts, but a running item keeps polling to completion and RX
processing continues.*/
func (a *At) SetEnable(enable bool) {
	a.enable = enable
}

/*SetUserData attaches an arbitrary value to the object.*/
func (a *At) SetUserData(v interface{}) {
	a.userData = v
}

/*UserData returns the value attached with SetUserData.*/
func (a *At) UserData() interface{} {
	return a.userData
}

/*
Process is the poller. Call it repeatedly from one task; each invocation is
non-blocking. In raw transparent mode it only shuttles bytes (see
RawTransportEnter). Otherwise it reads one chunk from the adapter, feeds it to
the URC recognizer first and the response matcher second, then advances the
current work item's state machine.
*/
func (a *At) Process() {
	if a.disposed {
		return
	}
	if a.rawTrans {
		a.rawTransProcess()
		return
	}
	var rbuf [readChunk]byte
	n := a.adap.Read(rbuf[:])
	a.urcRecvProcess(rbuf[:n])
	a.respRecvProcess(rbuf[:n])
	a.workProcess()
}

/*
workProcess selects and advances the current work item. Selection takes the
head of the high priority queue, else the head of the low priority queue, and
initializes the shared environment. Completion (terminal state or a handler
returning done) recycles the item before the next tick can select another.
*/
func (a *At) workProcess() {
	if a.cursor == nil {
		if !a.enable {
			return
		}
		switch {
		case a.hlist.Len() > 0:
			a.clist = a.hlist
		case a.llist.Len() > 0:
			a.clist = a.llist
		default:
			return //No work to do.
		}
		a.adap.lock()
		a.nextDelay = 0
		a.mlSuccess = false
		a.env.I, a.env.J, a.env.State = 0, 0, 0
		a.cursor = a.clist.Front().Value.(*workItem)
		a.env.Params = a.cursor.attr.Params
		a.env.RecvClr()
		a.env.ResetTimer()
		if a.cursor.state == WorkStateReady {
			updateWorkState(a.cursor, WorkStateRunning, a.cursor.code)
		}
		a.adap.unlock()
	}
	if a.cursor.state >= WorkStateFinish || a.runHandler(a.cursor) {
		if a.cursor.state == WorkStateRunning {
			updateWorkState(a.cursor, WorkStateFinish, a.cursor.code)
		}
		if a.cursor.state == WorkStateAbort {
			a.abortCallback(a.cursor)
		}
		a.recycleWorkItem(a.cursor)
		a.cursor = nil
	}
}

/*runHandler dispatches on the work kind; true means the item is done.*/
func (a *At) runHandler(wi *workItem) bool {
	switch wi.kind {
	case kindGeneral:
		return a.doWorkHandler(wi)
	case kindMulti:
		return a.multilineHandler(wi)
	default:
		return a.doCmdHandler(wi)
	}
}

/*
doCmdHandler drives formatted, single-line, raw-buffer and custom-sender
commands through SEND, RECV and RETRY. A tick in which both the error token
and the suffix have been matched reports error: the error branch commits and
the suffix is not consulted until the re-send resets the matcher.
*/
func (a *At) doCmdHandler(wi *workItem) bool {
	env := &a.env
	attr := &wi.attr
	switch env.State {
	case statSend:
		switch {
		case wi.kind == kindCustom && wi.sender != nil:
			wi.sender(env)
		case wi.kind == kindBuf:
			a.adap.Write(wi.buf)
		case wi.kind == kindSingle:
			a.sendCmdline(wi.single)
		default:
			a.sendCmdline(string(wi.buf))
		}
		env.State = statRecv
		env.ResetTimer()
		env.RecvClr()
		a.matchInfoInit(attr)
	case statRecv: //Receive information and matching processing.
		a.matchScan(attr)
		if a.matchMask&maskError != 0 {
			a.adap.debug("<-\r\n%s\r\n", a.recvbuf[:a.recvCnt])
			a.notifyError(wi, RespError)
			if env.I >= attr.Retry {
				a.doCallback(wi, RespError)
				return true
			}
			env.I++
			//Wrong response: hold off and try again.
			env.State = statRetry
			env.ResetTimer()
			return false
		}
		if a.matchMask&maskSuffix != 0 {
			a.doCallback(wi, RespOK)
			return true
		}
		if env.IsTimeout(attr.Timeout) {
			a.adap.debug("Command response timeout, retry:%d\r\n", env.I)
			if env.I >= attr.Retry {
				a.doCallback(wi, RespTimeout)
				return true
			}
			env.I++
			env.State = statSend
		}
	case statRetry:
		if env.IsTimeout(retryDelay) {
			env.State = statSend //Go back to the send state
		}
	default:
		env.State = statSend
	}
	return false
}

/*
multilineHandler walks a command array with a per-step retry budget. A step
whose retries are exhausted is skipped rather than failing the batch; the
final code is ok when at least one step succeeded. Each step runs against the
package default timeout.
*/
func (a *At) multilineHandler(wi *workItem) bool {
	env := &a.env
	attr := &wi.attr
	cmds := wi.multi
	switch env.State {
	case statSend:
		if env.I >= len(cmds) || cmds[env.I] == "" { //All commands are sent.
			if a.mlSuccess {
				a.doCallback(wi, RespOK)
			} else {
				a.doCallback(wi, RespError)
			}
			return true
		}
		a.sendCmdline(cmds[env.I])
		env.RecvClr()
		env.ResetTimer()
		env.State = statRecv
		a.matchInfoInit(attr)
	case statRecv:
		if env.Contains(attr.Suffix) {
			env.State = statSend
			env.I++
			env.J = 0
			a.mlSuccess = true //Mark execution status
			a.adap.debug("<-\r\n%s\r\n", a.recvbuf[:a.recvCnt])
		} else if env.Contains(DefRespErr) {
			a.adap.debug("<-\r\n%s\r\n", a.recvbuf[:a.recvCnt])
			a.notifyError(wi, RespError)
			env.J++
			a.adap.debug("CMD:'%s' failed to executed, retry:%d\r\n", cmds[env.I], env.J)
			if env.J >= attr.Retry {
				env.State = statSend
				env.J = 0
				env.I++
			} else {
				//Wrong response: hold off and re-send the same step.
				env.State = statRetry
				env.ResetTimer()
			}
		} else if env.IsTimeout(DefTimeout) {
			a.doCallback(wi, RespTimeout)
			return true
		}
	case statRetry:
		if env.IsTimeout(retryDelay) {
			env.State = statSend //Go back to the send state and resend.
		}
	default:
		env.State = statSend
	}
	return false
}

/*
doWorkHandler invokes the user polling function, honoring a pending NextWait
delay first. The work ends when the function returns true (code ok) or called
env.Finish.
*/
func (a *At) doWorkHandler(wi *workItem) bool {
	if a.nextDelay > 0 {
		if a.adap.now().Sub(a.delayStart) <= a.nextDelay {
			return false
		}
		a.nextDelay = 0
	}
	return wi.work(&a.env)
}

/*
doCallback finalizes a command work item: it notifies the adapter error hook
on timeout (error-token matches are reported by notifyError when observed),
mirrors the response into any attached context, marks
the item finished, and fires the completion callback. Prefix and Suffix alias
into the receive buffer at their match positions, or the buffer start when
the anchor was not configured.
*/
func (a *At) doCallback(wi *workItem, code RespCode) {
	buf := a.recvbuf[:a.recvCnt]
	a.adap.debug("<-\r\n%s\r\n", buf)
	r := &Response{At: a, Params: wi.attr.Params, Code: code, Buf: buf, Prefix: buf, Suffix: buf}
	if a.prefixAt >= 0 {
		r.Prefix = buf[a.prefixAt:]
	}
	if a.suffixAt >= 0 {
		r.Suffix = buf[a.suffixAt:]
	}
	//Exception notification. Error-token matches were already reported at the
	//point they were observed; only timeouts surface here.
	if code == RespTimeout {
		if a.adap.Error != nil {
			a.adap.Error(r)
		}
	}
	if code == RespError || code == RespTimeout {
		a.errOccur = true
		a.adap.debug("AT Response :%s\r\n", code)
	} else {
		a.errOccur = false
	}
	if ctx := wi.attr.Ctx; ctx != nil {
		ctx.copyResp(buf)
	}
	updateWorkState(wi, WorkStateFinish, code)
	//Submit response data and status.
	if wi.attr.Callback != nil {
		wi.attr.Callback(r)
	}
}

/*notifyError reports an error-token match to the adapter hook at the moment
it is observed, once per match regardless of the retry outcome.*/
func (a *At) notifyError(wi *workItem, code RespCode) {
	if a.adap.Error == nil {
		return
	}
	buf := a.recvbuf[:a.recvCnt]
	a.adap.Error(&Response{At: a, Params: wi.attr.Params, Code: code, Buf: buf, Prefix: buf, Suffix: buf})
}

/*abortCallback reports a cancelled item to its callback with code abort. The
adapter error hook is not consulted for aborts.*/
func (a *At) abortCallback(wi *workItem) {
	if ctx := wi.attr.Ctx; ctx != nil {
		ctx.copyResp(a.recvbuf[:a.recvCnt])
	}
	if wi.attr.Callback != nil {
		buf := a.recvbuf[:a.recvCnt]
		wi.attr.Callback(&Response{At: a, Params: wi.attr.Params, Code: RespAbort, Buf: buf, Prefix: buf, Suffix: buf})
	}
}

/*
ExecCmd enqueues a formatted command. The format verbs are the fmt ones; the
render is bounded by MaxCmdLen and the resulting bytes are owned by the work
item. The command is emitted with a trailing CRLF.
*/
func (a *At) ExecCmd(attr *Attr, format string, args ...interface{}) error {
	if a.disposed {
		return ErrDisposed
	}
	if !coreMem.acquire(MaxCmdLen) {
		a.adap.debug("Memory ceiling reached when execute cmd...\r\n")
		return ErrNoMemory
	}
	line := fmt.Sprintf(format, args...)
	coreMem.release(MaxCmdLen)
	if len(line) > MaxCmdLen {
		line = line[:MaxCmdLen]
	}
	if len(line) == 0 {
		return ErrBytesArgs
	}
	_, err := a.addWorkItem(kindCmd, attr, []byte(line))
	return err
}

/*
SendSingleLine enqueues a single command line, emitted with a trailing CRLF.
Only the string is kept, not a copy, so the line must outlive the work.
*/
func (a *At) SendSingleLine(attr *Attr, line string) error {
	if a.disposed {
		return ErrDisposed
	}
	it, err := a.createWorkItem(kindSingle, attr, nil)
	if err != nil {
		return err
	}
	it.single = line
	a.submitWorkItem(it)
	return nil
}

/*
SendMultiline enqueues a command array executed in order with per-step
retries; an empty string entry terminates the array early. Only the slice
header is kept, so the array must outlive the work.
*/
func (a *At) SendMultiline(attr *Attr, cmds []string) error {
	if a.disposed {
		return ErrDisposed
	}
	it, err := a.createWorkItem(kindMulti, attr, nil)
	if err != nil {
		return err
	}
	it.multi = cmds
	a.submitWorkItem(it)
	return nil
}

/*SendData enqueues raw bytes written verbatim, with no terminator appended.
The bytes are copied and owned by the work item.*/
func (a *At) SendData(attr *Attr, data []byte) error {
	if a.disposed {
		return ErrDisposed
	}
	_, err := a.addWorkItem(kindBuf, attr, data)
	return err
}

/*CustomCmd enqueues a command whose outbound bytes are written by sender;
response matching then proceeds per the attributes as usual.*/
func (a *At) CustomCmd(attr *Attr, sender SenderFunc) error {
	if a.disposed {
		return ErrDisposed
	}
	it, err := a.createWorkItem(kindCustom, attr, nil)
	if err != nil {
		return err
	}
	it.sender = sender
	a.submitWorkItem(it)
	return nil
}

/*
DoWork enqueues general polling work. The function runs once per poll tick
with the shared environment until it returns true (code ok) or calls
env.Finish. params is exposed through env.Params.
*/
func (a *At) DoWork(params interface{}, work WorkFunc) error {
	if a.disposed {
		return ErrDisposed
	}
	attr := DefaultAttr()
	attr.Params = params
	it, err := a.createWorkItem(kindGeneral, &attr, nil)
	if err != nil {
		return err
	}
	it.work = work
	a.submitWorkItem(it)
	return nil
}
