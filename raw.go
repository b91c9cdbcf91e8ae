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

import "strings"

//rawChunk bounds how much the shuttle moves per direction per tick.
const rawChunk = 32

/*
RawConfig configures raw transparent mode: the secondary byte stream the
serial link is shuttled to and from, plus the optional exit sentinel. When
ExitCmd is set, lines flowing out of the secondary Read side are compared to
it case-insensitively (terminated by carriage return or newline), and OnExit
fires on a match. OnExit is responsible for calling RawTransportExit; the
shuttle keeps running until it does.
*/
type RawConfig struct {
	ExitCmd string
	OnExit  func()
	Write   func(p []byte) int
	Read    func(p []byte) int
}

/*
rawTransProcess is the raw mode poller body: modem bytes are forwarded to the
secondary writer, secondary bytes to the modem, and the secondary stream is
scanned for the exit sentinel. The receive buffer doubles as the line
accumulator while raw mode is active.
*/
func (a *At) rawTransProcess() {
	var rbuf [rawChunk]byte
	if a.rawConf == nil {
		return
	}
	if n := a.adap.Read(rbuf[:]); n > 0 {
		a.rawConf.Write(rbuf[:n])
	}
	n := a.rawConf.Read(rbuf[:])
	if n > 0 {
		a.adap.Write(rbuf[:n])
	}
	//Exit command detection
	if a.rawConf.ExitCmd == "" {
		return
	}
	for i := 0; i < n; i++ {
		if a.recvCnt >= len(a.recvbuf) {
			a.recvCnt = 0
		}
		c := rbuf[i]
		if c != '\r' && c != '\n' {
			a.recvbuf[a.recvCnt] = c
			a.recvCnt++
			continue
		}
		line := string(a.recvbuf[:a.recvCnt])
		a.recvCnt = 0
		if !strings.EqualFold(a.rawConf.ExitCmd, line) {
			continue
		}
		if a.rawConf.OnExit != nil {
			a.rawConf.OnExit()
		}
	}
}

/*
RawTransportEnter switches the poller into raw transparent mode. Command and
URC processing are short-circuited until RawTransportExit; queued work stays
queued. The configuration is only referenced, so it must outlive the mode.
*/
func (a *At) RawTransportEnter(conf *RawConfig) {
	a.rawConf = conf
	a.rawTrans = true
	a.recvCnt = 0
}

/*RawTransportExit leaves raw transparent mode; the next Process resumes
normal command and URC handling.*/
func (a *At) RawTransportExit() {
	a.rawTrans = false
}
