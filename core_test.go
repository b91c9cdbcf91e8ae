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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

/*testLink is an in-memory full duplex stand-in for the modem: feed() queues
device-to-core bytes, sent() exposes everything the core wrote.*/
type testLink struct {
	rx bytes.Buffer
	tx bytes.Buffer
}

func (l *testLink) feed(s string) { l.rx.WriteString(s) }

func (l *testLink) sent() string { return l.tx.String() }

func (l *testLink) clearSent() { l.tx.Reset() }

func newTestAt(t *testing.T, recvSize, urcSize int) (*At, *testLink, *fakeClock) {
	t.Helper()
	coreMem.reset(DefMemLimit)
	link := &testLink{}
	clock := newFakeClock()
	adap := &Adapter{
		Write: func(p []byte) int {
			link.tx.Write(p)
			return len(p)
		},
		Read: func(p []byte) int {
			n, _ := link.rx.Read(p)
			return n
		},
		Now:         clock.now,
		RecvBufSize: recvSize,
		URCBufSize:  urcSize,
	}
	at, err := New(adap)
	require.NoError(t, err)
	t.Cleanup(func() {
		at.Destroy()
		coreMem.reset(DefMemLimit)
	})
	return at, link, clock
}

func tick(at *At, n int) {
	for i := 0; i < n; i++ {
		at.Process()
	}
}

func TestNew(t *testing.T) {
	coreMem.reset(DefMemLimit)
	defer coreMem.reset(DefMemLimit)
	if _, err := New(nil); err == nil {
		t.Error("nil adapter should be refused")
	}
	if _, err := New(&Adapter{Write: func([]byte) int { return 0 }}); err == nil {
		t.Error("adapter without Read should be refused")
	}
	//buffer sizes below the floor are raised, not refused
	at, err := New(&Adapter{
		Write:       func(p []byte) int { return len(p) },
		Read:        func([]byte) int { return 0 },
		RecvBufSize: 1,
		URCBufSize:  1,
	})
	require.NoError(t, err)
	require.Equal(t, minBufSize, len(at.recvbuf))
	require.Equal(t, minBufSize, len(at.urcbuf))
	at.Destroy()
}

func TestSingleLineSuccess(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Timeout: 500 * time.Millisecond, Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendSingleLine(&attr, "AT"))

	tick(at, 1)
	require.Equal(t, "AT\r\n", link.sent())

	link.feed("\r\nOK\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
	require.Equal(t, "\r\nOK\r\n", string(rsp.Buf))
	require.True(t, bytes.HasPrefix(rsp.Suffix, []byte("OK")))
	require.False(t, at.Busy())
}

func TestErrorRetrySuccess(t *testing.T) {
	at, link, clock := newTestAt(t, 128, 0)
	var codes []RespCode
	var errObs int
	at.adap.Error = func(*Response) { errObs++ }
	attr := Attr{Suffix: "OK", Timeout: 500 * time.Millisecond, Retry: 1, Callback: func(r *Response) { codes = append(codes, r.Code) }}
	require.NoError(t, at.ExecCmd(&attr, "AT+X"))

	tick(at, 1) //send
	link.feed("ERROR\r\n")
	tick(at, 1) //error matched, enters retry hold-off
	require.Equal(t, 1, strings.Count(link.sent(), "AT+X\r\n"))

	clock.advance(99 * time.Millisecond)
	tick(at, 1) //still holding off
	require.Equal(t, 1, strings.Count(link.sent(), "AT+X\r\n"))

	clock.advance(2 * time.Millisecond)
	tick(at, 2) //hold-off elapses, re-send
	require.Equal(t, 2, strings.Count(link.sent(), "AT+X\r\n"))

	link.feed("OK\r\n")
	tick(at, 1)
	require.Equal(t, []RespCode{RespOK}, codes)
	require.Equal(t, 1, errObs)
}

func TestErrorRetriesExhausted(t *testing.T) {
	at, link, clock := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.ExecCmd(&attr, "AT+FAIL"))

	tick(at, 1)
	link.feed("ERROR\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespError, rsp.Code)
	require.Equal(t, 1, strings.Count(link.sent(), "AT+FAIL\r\n"))
	_ = clock
}

func TestErrorWinsOverSuffixSameTick(t *testing.T) {
	//A body carrying both the error token and the success suffix in the same
	//read batch reports error.
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.ExecCmd(&attr, "AT+Z"))

	tick(at, 1)
	link.feed("ERROR\r\nOK\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespError, rsp.Code)
	_ = link
}

func TestTimeoutRetriesExhausted(t *testing.T) {
	at, link, clock := newTestAt(t, 128, 0)
	var rsp *Response
	var errObs int
	at.adap.Error = func(*Response) { errObs++ }
	attr := Attr{Suffix: "OK", Timeout: 100 * time.Millisecond, Retry: 1, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.ExecCmd(&attr, "AT+Y"))

	tick(at, 1) //first send
	clock.advance(101 * time.Millisecond)
	tick(at, 2) //timeout, second send
	require.Equal(t, 2, strings.Count(link.sent(), "AT+Y\r\n"))

	clock.advance(101 * time.Millisecond)
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespTimeout, rsp.Code)
	require.Equal(t, 2, strings.Count(link.sent(), "AT+Y\r\n"))
	require.Equal(t, 1, errObs)
	require.True(t, IsTimeout(rsp.Code.Err()))
}

func TestPrefixBeforeSuffix(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Prefix: "+CSQ:", Suffix: "OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.ExecCmd(&attr, "AT+CSQ"))

	tick(at, 1)
	//An OK ahead of the prefix must not satisfy the suffix match.
	link.feed("OK-NOT-YET\r\n")
	tick(at, 1)
	require.Nil(t, rsp)

	link.feed("+CSQ: 23,0\r\nOK\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
	require.True(t, bytes.HasPrefix(rsp.Prefix, []byte("+CSQ:")))
	require.True(t, bytes.HasPrefix(rsp.Suffix, []byte("OK")))
	//the suffix match sits at or after the prefix match
	require.True(t, len(rsp.Prefix) >= len(rsp.Suffix))
	_ = link
}

func TestSuffixSplitAcrossBatches(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendSingleLine(&attr, "AT"))

	tick(at, 1)
	link.feed("\r\nO")
	tick(at, 1)
	require.Nil(t, rsp)
	link.feed("K\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
}

func TestResponseOverflowThenTimeout(t *testing.T) {
	at, link, clock := newTestAt(t, 64, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Timeout: 200 * time.Millisecond, Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendSingleLine(&attr, "AT+DUMP"))

	tick(at, 1)
	link.feed(strings.Repeat("x", 32))
	tick(at, 1)
	require.Equal(t, 32, at.recvCnt)
	link.feed(strings.Repeat("y", 40))
	tick(at, 1)
	//overflow resets the counter and keeps appending
	require.Equal(t, 40, at.recvCnt)

	clock.advance(201 * time.Millisecond)
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespTimeout, rsp.Code)
}

func TestRawBufferSentVerbatim(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	payload := []byte{0x01, 0x02, '\r', 0xff}
	attr := Attr{Suffix: "SEND OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendData(&attr, payload))

	tick(at, 1)
	require.Equal(t, string(payload), link.sent()) //no CRLF appended

	link.feed("SEND OK\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
}

func TestCustomSender(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.CustomCmd(&attr, func(env *Env) {
		env.Println("AT+CIPSEND=%d", 5)
	}))

	tick(at, 1)
	require.Equal(t, "AT+CIPSEND=5\r\n", link.sent())
	link.feed("OK\r\n")
	tick(at, 1)
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
}

func TestPriorityPreemption(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var order []string
	mk := func(name string) *Attr {
		return &Attr{Suffix: "OK", Retry: 0, Callback: func(r *Response) { order = append(order, name) }}
	}
	low := mk("low")
	require.NoError(t, at.SendSingleLine(low, "AT+LOW"))
	high := mk("high")
	high.Priority = PriorityHigh
	require.NoError(t, at.SendSingleLine(high, "AT+HIGH"))

	tick(at, 1)
	require.Equal(t, "AT+HIGH\r\n", link.sent())
	link.feed("OK\r\n")
	tick(at, 1) //high completes
	link.clearSent()
	tick(at, 1) //low dispatches only now
	require.Equal(t, "AT+LOW\r\n", link.sent())
	link.feed("OK\r\n")
	tick(at, 1)
	require.Equal(t, []string{"high", "low"}, order)
}

func TestAbortAllBeforeSend(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendSingleLine(&attr, "AT"))
	at.AbortAll()

	tick(at, 2)
	require.Equal(t, "", link.sent()) //no bytes written on behalf of aborted work
	require.NotNil(t, rsp)
	require.Equal(t, RespAbort, rsp.Code)
	require.False(t, at.Busy())
}

func TestAbortAllMidCommand(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	attr := Attr{Suffix: "OK", Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendSingleLine(&attr, "AT+LONG"))

	tick(at, 1) //sent, now receiving
	at.AbortAll()
	link.clearSent()
	tick(at, 2)
	require.Equal(t, "", link.sent())
	require.NotNil(t, rsp)
	require.Equal(t, RespAbort, rsp.Code)
}

func TestContextObservation(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	ctx := NewContext(64)
	attr := Attr{Suffix: "OK", Retry: 0}
	ctx.Attach(&attr)
	require.NoError(t, at.SendSingleLine(&attr, "AT"))
	require.True(t, ctx.IsBusy())

	tick(at, 1)
	require.Equal(t, WorkStateRunning, ctx.State())
	link.feed("\r\nOK\r\n")
	tick(at, 1)
	require.True(t, ctx.IsFinish())
	require.Equal(t, WorkStateFinish, ctx.State())
	require.Equal(t, RespOK, ctx.Result())
	require.Equal(t, "\r\nOK\r\n", string(ctx.Resp()))
}

func TestMultilineAllGood(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	cmds := []string{"ATE0", "AT+CIMI"}
	attr := Attr{Suffix: "OK", Retry: 2, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendMultiline(&attr, cmds))

	tick(at, 1)
	require.Equal(t, "ATE0\r\n", link.sent())
	link.feed("OK\r\n")
	tick(at, 1) //step ok, back to the send step
	link.clearSent()
	tick(at, 1) //second step goes out
	require.Equal(t, "AT+CIMI\r\n", link.sent())
	link.feed("OK\r\n")
	tick(at, 2) //step ok, then array exhausted
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
}

func TestMultilineStepRetrySucceeds(t *testing.T) {
	//A failing step that recovers on its second attempt still completes ok.
	at, link, clock := newTestAt(t, 128, 0)
	var rsp *Response
	cmds := []string{"AT+FLAKY"}
	attr := Attr{Suffix: "OK", Retry: 2, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendMultiline(&attr, cmds))

	tick(at, 1) //send attempt 1
	link.feed("ERROR\r\n")
	tick(at, 1) //enters retry hold-off
	clock.advance(101 * time.Millisecond)
	tick(at, 2) //re-send attempt 2
	require.Equal(t, 2, strings.Count(link.sent(), "AT+FLAKY\r\n"))
	link.feed("OK\r\n")
	tick(at, 3) //step ok, array exhausted, batch completes
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code)
}

func TestMultilineStepSkippedAfterRetries(t *testing.T) {
	at, link, clock := newTestAt(t, 128, 0)
	var rsp *Response
	cmds := []string{"AT+BAD", "AT+GOOD"}
	attr := Attr{Suffix: "OK", Retry: 1, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendMultiline(&attr, cmds))

	tick(at, 1)
	link.feed("ERROR\r\n")
	tick(at, 1) //retries for this step exhausted, step skipped
	link.clearSent()
	tick(at, 1)
	require.Equal(t, "AT+GOOD\r\n", link.sent())
	link.feed("OK\r\n")
	tick(at, 3)
	require.NotNil(t, rsp)
	require.Equal(t, RespOK, rsp.Code) //at least one step succeeded
	_ = clock
}

func TestMultilineNoSuccessIsError(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	var rsp *Response
	cmds := []string{"AT+BAD"}
	attr := Attr{Suffix: "OK", Retry: 0, Callback: func(r *Response) { rsp = r }}
	require.NoError(t, at.SendMultiline(&attr, cmds))

	tick(at, 1)
	link.feed("ERROR\r\n")
	tick(at, 1) //step fails with no retries, skipped
	tick(at, 1) //array exhausted with no success
	require.NotNil(t, rsp)
	require.Equal(t, RespError, rsp.Code)
}

func TestSetEnableGatesDispatch(t *testing.T) {
	at, link, _ := newTestAt(t, 128, 0)
	at.SetEnable(false)
	attr := Attr{Suffix: "OK"}
	require.NoError(t, at.SendSingleLine(&attr, "AT"))
	tick(at, 3)
	require.Equal(t, "", link.sent())
	require.True(t, at.Busy())

	at.SetEnable(true)
	tick(at, 1)
	require.Equal(t, "AT\r\n", link.sent())
}

func TestUserData(t *testing.T) {
	at, _, _ := newTestAt(t, 64, 0)
	require.Nil(t, at.UserData())
	at.SetUserData("ec800m")
	require.Equal(t, "ec800m", at.UserData())
}

func TestDestroyRefusesFurtherWork(t *testing.T) {
	at, _, _ := newTestAt(t, 64, 0)
	require.NoError(t, at.SendSingleLine(nil, "AT"))
	at.Destroy()
	require.Equal(t, ErrDisposed, at.SendSingleLine(nil, "AT"))
	require.Equal(t, ErrDisposed, at.ExecCmd(nil, "AT"))
	at.Process() //must be a no-op, not a panic
}
