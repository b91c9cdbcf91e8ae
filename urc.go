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
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

/*URCStatus tells a handler whether its frame arrived whole or the recognizer
gave up waiting.*/
type URCStatus int

const (
	//URCRecvOK means the frame (header or payload slice) is complete.
	URCRecvOK URCStatus = iota
	//URCRecvTimeout means the prefix matched but no terminator or full
	//payload arrived within URCTimeout.
	URCRecvTimeout
)

//String implements the Stringer interface
func (s URCStatus) String() string {
	if s == URCRecvTimeout {
		return "timeout"
	}
	return "ok"
}

/*URCInfo is what a subscription handler receives: the frame status and the
URC buffer content. Buf aliases the internal buffer and is only valid for the
duration of the handler call.*/
type URCInfo struct {
	Status URCStatus
	Buf    []byte
}

/*
URCItem is one subscription: a frame prefix such as "+CSQ:", the single end
mark byte that terminates its header (drawn from URCEndMarks), and the
handler. The handler returns the number of further payload bytes the frame
still requires; 0 means the frame is complete. A non-zero return keeps the
recognizer in payload phase, and the handler is called again once that many
more bytes have been buffered.
*/
type URCItem struct {
	Prefix  string
	EndMark byte
	Handler func(URCInfo) int
}

/*Subscriptions is the read-only URC subscription table. The first item whose
prefix appears as a substring of the buffered header wins.*/
type Subscriptions []URCItem

//String implements the Stringer() interface
func (s Subscriptions) String() string {
	prefixes := sort.StringSlice{}
	byPrefix := map[string]URCItem{}
	for _, item := range s {
		prefixes = append(prefixes, item.Prefix)
		byPrefix[item.Prefix] = item
	}
	prefixes.Sort()

	buf := bytes.NewBufferString("")
	tw := tablewriter.NewWriter(buf)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"Prefix", "End Mark"})
	for _, p := range prefixes {
		item := byPrefix[p]
		mark := strings.Replace(strings.Replace(string(item.EndMark), "\r", "\\r", -1), "\n", "\\n", -1)
		tw.Append([]string{p, mark})
	}
	tw.Render()
	return buf.String()
}

/*Contains returns true if the table holds a subscription for every one of
the passed prefixes.*/
func (s Subscriptions) Contains(prefixes ...string) bool {
	if s == nil || len(prefixes) == 0 {
		return false
	}
	for _, want := range prefixes {
		found := false
		for _, item := range s {
			if item.Prefix == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

/*SetURC installs the subscription table. The table is read-only to the core;
replace it wholesale to change subscriptions.*/
func (a *At) SetURC(tbl Subscriptions) {
	a.urcTbl = tbl
}

/*URCBufCount reports how many bytes of a URC frame are currently buffered.*/
func (a *At) URCBufCount() int {
	return a.urcCnt
}

/*
URCSetEnable turns URC recognition off for a window (and back on). While
disabled, bytes are discarded by the recognizer but still reach the command
matcher; use it when the device is about to push binary data that would
confuse prefix matching. Recognition re-enables itself when the window
elapses, or immediately when called with enable true.
*/
func (a *At) URCSetEnable(enable bool, window time.Duration) {
	a.urcEnable = enable
	if !enable {
		a.urcDisableWindow = window
		a.urcTimer = a.adap.now()
	}
}

/*findURCItem looks the buffered header up in the subscription table and
records where the winning prefix ends, so a prefix that itself contains the
end mark byte does not terminate its own header.*/
func (a *At) findURCItem() *URCItem {
	buf := a.urcbuf[:a.urcCnt]
	for i := range a.urcTbl {
		if at := bytes.Index(buf, []byte(a.urcTbl[i].Prefix)); at >= 0 {
			a.urcPrefixEnd = at + len(a.urcTbl[i].Prefix)
			return &a.urcTbl[i]
		}
	}
	return nil
}

func (a *At) urcReset() {
	a.urcTarget = 0
	a.urcCnt = 0
	a.urcItem = nil
	a.urcMatch = false
	a.urcPrefixEnd = 0
}

/*
urcHandlerEntry delivers a frame (or frame slice) to the matched handler. A
zero return resets the recognizer; a non-zero return arms the payload phase
for that many further bytes.
*/
func (a *At) urcHandlerEntry(status URCStatus, buf []byte) {
	if a.urcTarget > 0 {
		a.adap.debug("<=\r\n%.5s..\r\n", buf)
	} else {
		a.adap.debug("<=\r\n%s\r\n", buf)
	}
	remain := 0
	if a.urcItem != nil {
		remain = a.urcItem.Handler(URCInfo{Status: status, Buf: buf})
	}
	if remain == 0 && (a.urcItem != nil || a.cursor == nil) {
		a.urcReset()
	} else {
		a.adap.debug("URC receives %d bytes remaining.\r\n", remain)
		a.urcTarget = a.urcCnt + remain
		a.urcMatch = true
	}
}

/*urcTimeoutProcess abandons a frame that stalled past URCTimeout, notifying
the matched handler with a timeout status first.*/
func (a *At) urcTimeoutProcess() {
	if a.urcCnt > 0 && a.adap.now().Sub(a.urcTimer) > URCTimeout {
		if a.urcCnt > 2 && a.urcItem != nil {
			a.adap.debug("urc recv timeout=>%s\r\n", a.urcbuf[:a.urcCnt])
			a.urcHandlerEntry(URCRecvTimeout, a.urcbuf[:a.urcCnt])
		}
		a.urcReset()
	}
}

/*
urcRecvProcess feeds a read batch to the URC recognizer. Header phase buffers
bytes until one matches the end mark alphabet (or NUL), then looks the header
up in the subscription table; payload phase buffers verbatim until the target
count is reached. An empty batch only drives the stall timeout. Bytes are
never consumed from the command matcher's view: the poller hands the same
batch to respRecvProcess afterwards.
*/
func (a *At) urcRecvProcess(buf []byte) {
	if a.urcbuf == nil {
		return
	}
	if len(buf) == 0 {
		a.urcTimeoutProcess()
		return
	}
	if !a.urcEnable {
		if a.adap.now().Sub(a.urcTimer) <= a.urcDisableWindow {
			return
		}
		a.urcEnable = true
		a.adap.debug("Enable the URC match handler\r\n")
	}
	for _, ch := range buf {
		if a.urcCnt == 0 {
			a.urcTimer = a.adap.now() //Frame start arms the stall timeout.
		}
		a.urcbuf[a.urcCnt] = ch
		a.urcCnt++
		if a.urcCnt >= len(a.urcbuf) { //Empty directly on overflow
			a.urcReset()
			a.adap.debug("Urc buffer full.\r\n")
			continue
		}
		if a.urcMatch {
			if a.urcCnt >= a.urcTarget {
				a.urcHandlerEntry(URCRecvOK, a.urcbuf[:a.urcCnt])
			}
			continue
		}
		if strings.IndexByte(URCEndMarks, ch) < 0 && ch != 0 { //Find the URC end mark.
			continue
		}
		if a.urcItem == nil { //Find the corresponding URC handler
			a.urcItem = a.findURCItem()
			if a.urcItem == nil && ch == '\n' {
				if a.urcCnt > 2 && a.cursor == nil { //Unrecognized URC message
					a.adap.debug("%s\r\n", a.urcbuf[:a.urcCnt])
				}
				a.urcReset()
				continue
			}
		}
		if a.urcItem != nil && ch == a.urcItem.EndMark && a.urcCnt > a.urcPrefixEnd {
			a.urcHandlerEntry(URCRecvOK, a.urcbuf[:a.urcCnt])
		}
	}
}
