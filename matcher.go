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

import "bytes"

//Receive match mask bits.
const (
	maskPrefix = 0x01
	maskSuffix = 0x02
	maskError  = 0x04
)

/*
matchInfoInit arms the matcher for a fresh command attempt. An empty (or
absent) prefix or suffix counts as already matched, so a command with no
suffix anchor completes ok on its first receive poll unless the error token
has arrived by then, and one with neither anchor matches immediately.
*/
func (a *At) matchInfoInit(attr *Attr) {
	a.prefixAt, a.suffixAt = -1, -1
	a.matchLen = 0
	a.matchMask = 0
	if attr.Prefix == "" {
		a.matchMask |= maskPrefix
	}
	if attr.Suffix == "" {
		a.matchMask |= maskSuffix
	}
}

/*
matchScan brings the match mask up to date with the receive buffer. The
suffix is never searched before the prefix has been located (when one is
configured), and its search starts at the prefix match so the suffix can not
land in front of it. The error token is scanned independently over the whole
buffer. The matcher consumes nothing; the buffer is cleared by the dispatcher
when the next attempt starts.
*/
func (a *At) matchScan(attr *Attr) {
	if a.matchLen == a.recvCnt {
		return
	}
	a.matchLen = a.recvCnt
	buf := a.recvbuf[:a.recvCnt]
	if a.matchMask&maskPrefix == 0 {
		if i := bytes.Index(buf, []byte(attr.Prefix)); i >= 0 {
			a.prefixAt = i
			a.matchMask |= maskPrefix
		}
	}
	if a.matchMask&maskPrefix != 0 {
		start := 0
		if a.prefixAt >= 0 {
			start = a.prefixAt
		}
		if i := bytes.Index(buf[start:], []byte(attr.Suffix)); i >= 0 {
			a.suffixAt = start + i
			a.matchMask |= maskSuffix
		}
	}
	if bytes.Contains(buf, []byte(DefRespErr)) {
		a.matchMask |= maskError
	}
}

/*
respRecvProcess appends a read batch to the receive buffer. One byte of
capacity stays reserved. On overflow the counter resets and appending
continues: the partial response is lost and the command is expected to time
out or match against the fresher bytes.
*/
func (a *At) respRecvProcess(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if a.recvCnt+len(buf) >= len(a.recvbuf) {
		a.recvCnt = 0
	}
	n := copy(a.recvbuf[a.recvCnt:len(a.recvbuf)-1], buf)
	a.recvCnt += n
}
