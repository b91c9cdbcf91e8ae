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
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"

	"go.bug.st/serial"
)

/*Conn is the transport an Adapter can be built over: a byte stream that can
be described, read, written, closed, and re-opened at will. Reads are bounded
by a short internal deadline so they never park the poller.

Any error returned must be castable to net.Error*/
type Conn interface {
	fmt.Stringer
	io.ReadWriter
	io.Closer
	Open() error
}

var netClientRe = regexp.MustCompile("^(tcp|tcp4|tcp6):\\/\\/(.*:[a-zA-Z0-9]*)$")
var serialRe = regexp.MustCompile("^(?:rs232|serial):\\/\\/([^:]*):([0-9]*)$")

var known = map[*regexp.Regexp]func(context.Context, time.Duration, string) (Conn, error){
	netClientRe: func(ctx context.Context, dur time.Duration, dial string) (Conn, error) {
		return newNetConn(ctx, dur, dial)
	},
	serialRe: func(ctx context.Context, dur time.Duration, dial string) (Conn, error) {
		return newSerialConn(ctx, dur, dial)
	},
}

/*Dial returns an opened Conn from the passed dial string, ctx, and timeout.
dial needs to match a known dial format, timeout is used during the connection
process, and the ctx ensures IO ceases once it is cancelled.*/
func Dial(ctx context.Context, timeout time.Duration, dial string) (Conn, error) {
	for re, funcptr := range known {
		if re.MatchString(dial) {
			return funcptr(ctx, timeout, dial)
		}
	}
	return nil, newErr(false, false, fmt.Errorf("No known way to create a transport from %q", dial))
}

var _ Conn = &netConn{}

/*newNetConn opens a connection to a remote host.
dial should be in the form of: 'tcp[46]{0,1}://<host>:<port>'

Timeout is used during the connection process. Reads and writes carry a short
deadline (1ms) so the Conn can back a non-blocking Adapter; timeouts surface
as net.Error values with Timeout() true, which NewAdapter flattens into zero
counts.*/
func newNetConn(ctx context.Context, timeout time.Duration, dial string) (*netConn, error) {
	if !netClientRe.MatchString(dial) {
		return nil, newErr(false, false, fmt.Errorf("dial string not in correct form"))
	}
	matches := netClientRe.FindAllStringSubmatch(dial, -1) //capture groups used
	nctx, cancel := context.WithCancel(ctx)
	nc := &netConn{
		network:   matches[0][1],
		address:   matches[0][2],
		timeout:   timeout,
		rwtimeout: 1 * time.Millisecond,
		ctx:       nctx,
		cancel:    cancel,
	}
	return nc, nc.Open()
}

/*netConn backs an Adapter with a stream socket.*/
type netConn struct {
	network, address string
	cancel           context.CancelFunc
	ctx              context.Context
	rwtimeout        time.Duration
	timeout          time.Duration
	conn             net.Conn
}

/*String conforms to the fmt.Stringer interface*/
func (nc *netConn) String() string {
	return fmt.Sprintf("%v connection to %v", nc.network, nc.address)
}

/*Open forcibly disconnects (ignoring errors) and attempts the connect process
again.  It returns an error if it was unable to start*/
func (nc *netConn) Open() (err error) {
	select {
	case <-nc.ctx.Done():
		return newErr(false, false, nc.ctx.Err())
	default:
	}
	if nc.conn != nil {
		nc.conn.Close()
		nc.conn = nil
	}
	dialer := net.Dialer{
		Timeout:   nc.timeout,
		KeepAlive: 1 * time.Second,
	}
	//Errors from DialContext implement net.Error
	nc.conn, err = dialer.DialContext(nc.ctx, nc.network, nc.address)
	return
}

/*Read conforms to io.Reader, but immediately returns upon ctx
destruction after closing the underlying transport*/
func (nc *netConn) Read(b []byte) (int, error) {
	select {
	case <-nc.ctx.Done():
		defer nc.Close()
		return 0, newErr(false, false, nc.ctx.Err())
	default:
		if nc.rwtimeout > 0 {
			nc.conn.SetReadDeadline(time.Now().Add(nc.rwtimeout))
		}
		return nc.conn.Read(b) //nc.conn returns errors that conform to net.Error
	}
}

/*Write conforms to io.Writer, but immediately returns upon ctx
destruction after closing the underlying transport*/
func (nc *netConn) Write(b []byte) (int, error) {
	select {
	case <-nc.ctx.Done():
		defer nc.Close()
		return 0, newErr(false, false, nc.ctx.Err())
	default:
		if nc.rwtimeout > 0 {
			nc.conn.SetWriteDeadline(time.Now().Add(nc.rwtimeout))
		}
		return nc.conn.Write(b) //nc.conn returns errors that conform to net.Error
	}
}

/*Close conforms to io.Closer, but immediately returns upon ctx
destruction after closing the underlying transport*/
func (nc *netConn) Close() error {
	nc.cancel()
	defer func() { nc.conn = nil }()
	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}

var _ Conn = &serialConn{}

/*newSerialConn opens a connection to a serial device in 8N1 mode.
Dial should be in the form of "serial://<device>:<baud>" or
"rs232://<device>:<baud>". Reads are bounded by a 1ms timeout for the same
reason as the socket variant.*/
func newSerialConn(ctx context.Context, timeout time.Duration, dial string) (*serialConn, error) {
	if !serialRe.MatchString(dial) {
		return nil, newErr(false, false, fmt.Errorf("dial string not in correct form"))
	}
	matches := serialRe.FindAllStringSubmatch(dial, -1) //capture groups used
	baud, _ := strconv.ParseInt(matches[0][2], 10, 64)
	nctx, cancel := context.WithCancel(ctx)
	sc := &serialConn{
		ctx:    nctx,
		cancel: cancel,
		device: matches[0][1],
		mode: &serial.Mode{
			BaudRate: int(baud),
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
	return sc, sc.Open()
}

/*serialConn wraps around a serial port*/
type serialConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	device string
	mode   *serial.Mode
	port   serial.Port
}

/*String conforms to the fmt.Stringer interface*/
func (sc *serialConn) String() string {
	return fmt.Sprintf("serial connection to %v:%d 8N1", sc.device, sc.mode.BaudRate)
}

/*Open forcibly disconnects (ignoring errors) and attempts the connect process
again.  It returns an error if it was unable to start*/
func (sc *serialConn) Open() (err error) {
	select {
	case <-sc.ctx.Done():
		return newErr(false, false, sc.ctx.Err())
	default:
	}
	if sc.port != nil {
		sc.port.Close()
		sc.port = nil
	}
	if sc.port, err = serial.Open(sc.device, sc.mode); err != nil {
		return newErr(false, false, err)
	}
	sc.port.SetReadTimeout(1 * time.Millisecond)
	return nil
}

/*Read conforms to io.Reader, but immediately returns upon ctx
destruction after closing the underlying transport*/
func (sc *serialConn) Read(b []byte) (int, error) {
	select {
	case <-sc.ctx.Done():
		defer sc.Close()
		return 0, newErr(false, false, sc.ctx.Err())
	default:
		if sc.port == nil {
			return 0, newErr(false, false, fmt.Errorf("broken connection"))
		}
		return sc.port.Read(b)
	}
}

/*Write conforms to io.Writer, but immediately returns upon ctx
destruction after closing the underlying transport*/
func (sc *serialConn) Write(b []byte) (int, error) {
	select {
	case <-sc.ctx.Done():
		defer sc.Close()
		return 0, newErr(false, false, sc.ctx.Err())
	default:
		if sc.port == nil {
			return 0, newErr(false, false, fmt.Errorf("broken connection"))
		}
		return sc.port.Write(b)
	}
}

/*Close conforms to io.Closer, but immediately returns upon ctx
destruction after closing the underlying transport*/
func (sc *serialConn) Close() error {
	sc.cancel()
	defer func() { sc.port = nil }()
	if sc.port != nil {
		return sc.port.Close()
	}
	return nil
}
