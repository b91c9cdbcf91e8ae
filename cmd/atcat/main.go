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

//atcat is a crappy AT console: it dials a modem over a serial port or socket,
//pumps stdin lines through the asynchronous command manager, and prints
//responses and unsolicited messages as they arrive.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NCAR/atchat"
	"github.com/alecthomas/kingpin"
)

var (
	app     = kingpin.New("atcat", "A crappy AT console that can talk serial or tcp")
	dial    = app.Arg("dial", "Dial string").Default("serial:///dev/ttyUSB0:115200").String()
	timeout = app.Flag("timeout", "Per attempt response timeout").Default("500ms").Duration()
	retry   = app.Flag("retry", "Re-sends on error or timeout").Default("2").Int()
	debug   = app.Flag("debug", "Trace the full AT exchange").Bool()
	urcs    = app.Flag("urc", "URC prefix to watch (repeatable), terminated by newline").Strings()
)

func main() {
	_ = kingpin.MustParse(app.Parse(os.Args[1:]))
	con, err := atchat.Dial(context.Background(), 1*time.Second, *dial)
	if err != nil {
		panic(err)
	}
	defer con.Close()

	adapter := atchat.NewAdapter(con, 512, 512)
	//stdin enqueues race the polling task, so bracket queue mutations
	var mu sync.Mutex
	adapter.Lock = mu.Lock
	adapter.Unlock = mu.Unlock
	if *debug {
		adapter.Debug = func(format string, args ...interface{}) {
			fmt.Printf(format, args...)
		}
	}
	at, err := atchat.New(adapter)
	if err != nil {
		panic(err)
	}
	defer at.Destroy()

	var table atchat.Subscriptions
	for _, prefix := range *urcs {
		table = append(table, atchat.URCItem{
			Prefix:  prefix,
			EndMark: '\n',
			Handler: func(info atchat.URCInfo) int {
				fmt.Printf("URC> %s", info.Buf)
				return 0
			},
		})
	}
	at.SetURC(table)

	//single polling task
	go func() {
		for {
			at.Process()
			time.Sleep(5 * time.Millisecond)
		}
	}()

	attr := atchat.DefaultAttr()
	attr.Timeout = *timeout
	attr.Retry = *retry
	attr.Callback = func(r *atchat.Response) {
		fmt.Printf("%v\n", r)
	}

	//read from stdin
	stdin := bufio.NewReader(os.Stdin)
	for {
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		a := attr
		if err := at.ExecCmd(&a, "%s", line); err != nil {
			fmt.Println("enqueue failed:", err)
		}
	}
}
