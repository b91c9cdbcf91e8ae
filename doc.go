/*
Package atchat provides an asynchronous AT command communication manager for
driving a modem or comparable device over a byte oriented full duplex link.
Callers enqueue command work (formatted commands, single lines, multi-line
scripts, raw buffers, or custom polling work), and a single cooperative poller
serializes the work onto the wire, matches device responses against prefix and
suffix anchors with retry and timeout discipline, and dispatches completion
callbacks. The same poller concurrently recognizes unsolicited result codes
(URC) against a subscription table, including variable length frames received
in a two phase header-then-payload protocol.

# Purpose

Have you ever needed to drive a cellular modem, GPS, or other AT style device
from a single task without blocking on every exchange?  This package keeps one
non-blocking byte stream multiplexed between in-flight command matching and
URC recognition without losing bytes, so compound protocols (attach, register,
open socket, push data) can be built from small asynchronous work items.

# Interfaces

The core consumes the outside world through an Adapter: a small capability
record holding the non-blocking read and write functions, optional lock hooks
for multi-task producers, optional error and debug sinks, and the receive and
URC buffer sizes.  Everything else - the serial port itself, pin setup, and
application level command orchestration - stays with the embedder.

Work is enqueued through ExecCmd, SendSingleLine, SendMultiline, SendData,
and CustomCmd, each taking an optional Attr carrying the response prefix and
suffix anchors, the completion callback, the timeout, the retry budget, and
the queue priority, and through DoWork, which takes user params and a polling
function and runs with the default attributes.  Two priority FIFOs feed the poller; the head
of the high priority queue always dispatches before any low priority work.

The poller itself is driven by calling Process repeatedly from one task.  No
goroutines are spawned by the core and no call into it blocks.

# Dial Strings and Transports

For hosts that own a real serial port or socket, this package also provides a
thin transport layer selected via a URI dial string:

	tcp://<host:port> - Outgoing sockets of type tcp (either v4 or v6)
	tcp4://<host:port> - Outgoing sockets of type tcp v4
	tcp6://<host:port> - Outgoing sockets of type tcp v6
	serial://<device>:<baud> - Serial connection, 8N1
	rs232://<device>:<baud> - Serial connection, 8N1

Dial returns a Conn whose reads are bounded by a short deadline so that it can
back an Adapter without blocking the poller; NewAdapter performs exactly that
wrapping.

# Error Handling

Completion results are reported through response codes (ok, error, timeout,
abort), never through panics or errors thrown across the poller boundary.
Where the package does return errors (enqueue failures, transport faults),
they conform to net.Error after a cast, so IsTimeout and IsTemporary can
classify them the same way as any other transport error. The exceptions are
ErrBytesArgs and ErrBytesFormat, which are plain errors and classify as
neither.
*/
package atchat

import (
	"github.com/pkg/errors"
)

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

var (
	//ErrBytesArgs is returned when calling Bytes if any of the following occur:
	// - Wrong Number of args (too few / many)
	// - Wrong order (ie Command.Prototype is "%s %d" and provided args are '24, "string"'')
	// - Wrong types (ie Command.Prototype is "%s" and provided arg is '25')
	ErrBytesArgs = errors.Errorf("Proper arguments not provided to expand command into bytes")

	//ErrBytesFormat is returned when the args used to populate the command forms
	//a byte[] that does not match the Validating regexp (.CommandRegexp)
	ErrBytesFormat = errors.Errorf("Formed command does not match allowable format for outgoing commands")

	// ErrErrorResponse is returned when the response to a command matches the
	// error token with no retries remaining.  It has the following properties:
	// - IsTemporary(ErrErrorResponse) = false
	// - IsTimeout(ErrErrorResponse) == false
	// This error is intended to be used to compare against when checking errors
	ErrErrorResponse = newErr(false, false, errors.New("Command received error response"))

	// ErrTimedout is returned when no matching response arrives within the
	// command timeout with no retries remaining. IsTimeout(ErrTimedout) == true.
	ErrTimedout = newErr(true, true, errors.New("Command timed out before receiving the proper response"))

	// ErrAborted is returned for work cancelled via AbortAll before completion.
	ErrAborted = newErr(false, false, errors.New("Work was aborted before completion"))

	// ErrQueueFull is returned on enqueue when the work queue already holds the
	// configured maximum number of items.
	ErrQueueFull = newErr(true, false, errors.New("Work queue full"))

	// ErrNoMemory is returned on enqueue when accepting the work item would push
	// the core over its configured memory ceiling.
	ErrNoMemory = newErr(true, false, errors.New("Memory ceiling reached"))

	// ErrDisposed is returned when work is submitted to a destroyed object.
	ErrDisposed = newErr(false, false, errors.New("AT object has been destroyed"))
)
