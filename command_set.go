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
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

/*Command represents a named, reusable AT command prototype that can be
expanded with arguments and enqueued on a manager.
*/
type Command struct {
	/*Name is the human name of command, typically without any arugments. EG if
	the Prototype is something like "AT+CFUN=%d", the name should be something
	that makes sense for your average human being: like "Set Phone Functionality"*/
	Name string

	/*Timeout is the max time allowed per attempt before the command is forced
	into a retry or a failed-because-it-took-too-long response.*/
	Timeout time.Duration

	/*Prototype is the command prototype that is fed, with any arguments, to
	fmt.Sprintf and sent down the line followed by CRLF. That is,
	    fmt(.Prototype, args...)
	is enqueued.*/
	Prototype string

	/*CommandRegexp is the regex that the final command must match before being
	enqueued. This works in conjunction with the .Prototype in the following way
	such that c, defined by the following:
	     c := fmt.Sprintf(.Prototype, v ... interface{})
	must not contain %!, (a sign of too many/few/wrong parameters), and
	     CommandRegexp.MatchString(c)
	must be true.*/
	CommandRegexp *regexp.Regexp

	//Prefix anchors the semantic payload of the reply; empty means not required.
	Prefix string

	//Suffix marks a good/positive/affirmative response; empty means no suffix
	//is required and the command completes ok on its first receive poll
	//unless the error token has already arrived.
	Suffix string

	//Retry is the number of re-sends allowed on error or timeout.
	Retry int

	//Priority selects the queue the expanded command joins.
	Priority Priority

	//Description is a human readable string of a brief explaination of the commands purpose
	Description string
}

/*sanitize derenders ASCII control seq to readable equivalents*/
func sanitize(str string) string {
	return strings.Replace(strings.Replace(str, "\r", "\\r", -1), "\n", "\\n", -1)
}

//String implements the Stringer interface
func (c Command) String() string {
	return fmt.Sprintf("%s: %v Prototype:%q Prefix:%q Suffix:%q", c.Name, c.Timeout, c.Prototype, c.Prefix, c.Suffix)
}

/*Bytes returns the raw bytes that would be sent to the interface based on the
Command.Prototype and any optional arguments passed to it via
  fmt.Sprintf(.Prototype, v...)
If the resulting string formed by above contains any "%!" sequences, then this
assumes that the formed command was not properly fed through fmt.Sprintf, and
will return the package error ErrBytesArgs.

If .CommandRegexp is nil, it is assumed that any command formed (sans the above
rule) is acceptable.  If not, the formed command is compared against
CommandRegexp.  If the formed command does not match, the package error
ErrBytesFormat is returned.

If all goes well, a byte slice to be sent down the line and a nil error is
returned.

BUG: Current implementation disallows handling of commands with "%!" sequences
*/
func (c Command) Bytes(v ...interface{}) ([]byte, error) {
	str := fmt.Sprintf(c.Prototype, v...)
	//checking for wrong, or invalid arguments
	if strings.Contains(str, "%!") {
		return []byte(str), ErrBytesArgs
	}
	//make sure whatever we stuffed matches the provided regexp
	if c.CommandRegexp != nil && !c.CommandRegexp.MatchString(str) {
		return []byte(str), ErrBytesFormat
	}
	return []byte(str), nil
}

/*Attr expands the command's matching and retry options into an attribute set
ready to enqueue, attaching the passed callback.*/
func (c Command) Attr(cb Callback) Attr {
	attr := Attr{
		Prefix:   c.Prefix,
		Suffix:   c.Suffix,
		Callback: cb,
		Timeout:  c.Timeout,
		Retry:    c.Retry,
		Priority: c.Priority,
	}
	if attr.Timeout == 0 {
		attr.Timeout = DefTimeout
	}
	return attr
}

/*
Exec expands the named command from the set with args and enqueues it on the
manager. The callback fires on the polling task once the command completes.
Unknown names and malformed expansions are refused before anything is queued.
*/
func (a *At) Exec(cmds Commands, name string, cb Callback, args ...interface{}) error {
	cmd, ok := cmds[name]
	if !ok {
		return ErrBytesArgs
	}
	raw, err := cmd.Bytes(args...)
	if err != nil {
		return err
	}
	attr := cmd.Attr(cb)
	return a.SendSingleLine(&attr, string(raw))
}

//Commands is map of Command structure where the key should be Command.Name
type Commands map[string]Command

//String implements the Stringer() interface
func (c Commands) String() (r string) {
	cmds := sort.StringSlice{}
	for cmd := range c {
		cmds = append(cmds, cmd)
	}
	cmds.Sort()

	buf := bytes.NewBufferString("")
	tw := tablewriter.NewWriter(buf)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"Name", "Timeout", "Prototype", "Command Regex", "Prefix", "Suffix"})

	for _, cc := range cmds {
		cmd := c[cc]
		re := "-"
		if cmd.CommandRegexp != nil {
			re = sanitize(cmd.CommandRegexp.String())
		}
		tw.Append([]string{
			cc,
			cmd.Timeout.String(),
			sanitize(cmd.Prototype),
			re,
			sanitize(cmd.Prefix),
			sanitize(cmd.Suffix),
		})
	}
	tw.Render()
	return buf.String()
}

//JSONLabels returns a json array of the stored commands
func (c Commands) JSONLabels() (r string) {
	r = "["
	i := 0
	for lab := range c {
		switch i {
		default:
			r += ","
		case 0:
		}
		i++
		r += fmt.Sprintf("%q", lab)
	}
	r += "]"
	return
}

/*Contains returns true if the command set contains all of the passed named
commands.  It checks the key values, not the embedded Command.Name values*/
func (c Commands) Contains(named ...string) bool {
	if c == nil || len(named) == 0 {
		return false
	}
	for _, name := range named {
		if _, ok := c[name]; !ok {
			return false
		}
	}
	return true
}

/*Clone returns a deep copy of the Commands*/
func (c Commands) Clone() Commands {
	r := Commands{}
	for name, cmd := range c {
		r[name] = cmd
	}
	return r
}

/*Merge takes multiple command sets and returns a single command set*/
func Merge(cmds ...Commands) Commands {
	c := Commands{}
	for _, cmdset := range cmds {
		for name, cmd := range cmdset {
			c[name] = cmd
		}
	}
	return c
}
