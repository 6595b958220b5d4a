/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

type logger struct {
	name      string
	out       io.Writer
	callDepth int
}

var (
	currentLogger atomic.Pointer[logger]

	level atomic.Int32

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors = []string{
		magenta,
		green,
		blue,
		yellow,
		red,
	}

	levelName = []string{
		"Trace",
		"Debug",
		"Info",
		"Warn",
		"Error",
	}
)

// Log levels accepted by SetLogLevel and COSIM_SHM_LOG_LEVEL.
const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

func init() {
	currentLogger.Store(&logger{"", os.Stdout, 3})
	level.Store(LevelWarn)
	if v := os.Getenv("COSIM_SHM_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= LevelTrace && n <= LevelNoPrint {
			level.Store(int32(n))
		}
	}
}

// SetLogLevel changes the internal logger's level. The default level is Warn;
// the process env `COSIM_SHM_LOG_LEVEL` also sets it.
func SetLogLevel(l int) {
	if l >= LevelTrace && l <= LevelNoPrint {
		level.Store(int32(l))
	}
}

// SetLogOutput redirects the internal logger. A nil writer restores stdout.
func SetLogOutput(out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	currentLogger.Store(&logger{name: internalLogger().name, out: out, callDepth: 3})
}

// internalLogger returns the logger in effect.
func internalLogger() *logger {
	return currentLogger.Load()
}

func enabled(l int) bool {
	return int(level.Load()) <= l
}

func (l *logger) logf(lvl int, format string, a ...interface{}) {
	if !enabled(lvl) {
		return
	}
	if _, err := fmt.Fprintf(l.out, l.prefix(lvl)+format+reset+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "logger %s failed: %v\n", levelName[lvl], err)
	}
}

func (l *logger) errorf(format string, a ...interface{}) { l.logf(LevelError, format, a...) }
func (l *logger) warnf(format string, a ...interface{})  { l.logf(LevelWarn, format, a...) }
func (l *logger) infof(format string, a ...interface{})  { l.logf(LevelInfo, format, a...) }
func (l *logger) debugf(format string, a ...interface{}) { l.logf(LevelDebug, format, a...) }

func (l *logger) prefix(level int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	_, _ = buf.WriteString(colors[level])
	_, _ = buf.WriteString(levelName[level])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
	return buf.String()
}

func (l *logger) location() string {
	// logf adds one frame on top of the level helpers.
	_, file, line, ok := runtime.Caller(l.callDepth + 1)
	if !ok {
		file = "???"
		line = 0
	}
	file = filepath.Base(file)
	return file + ":" + strconv.Itoa(line)
}

// DebugRegionDetail prints the region's identity and segment table to w.
func DebugRegionDetail(w io.Writer, r *Region) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "region:%s id:%s path:%s offset:%d size:%d disposed:%t\n",
		r.Name(), r.id, r.cfg.Path, r.cfg.Offset, r.size, r.Disposed())
	idx := r.Segments()
	fmt.Fprintf(buf, "segments:%d segmentSize:%d touched:%d\n", idx.Count(), idx.SegmentSize(), len(idx.Touched()))
	for _, seg := range idx.Segments() {
		touched := " "
		if idx.Pointer(seg.Index) != nil {
			touched = "*"
		}
		fmt.Fprintf(buf, "  %s[%3d] offset:0x%08x size:0x%08x\n", touched, seg.Index, seg.Offset, seg.Size)
	}
	_, _ = w.Write(buf.B)
}

// Dump writes a hex dump of n bytes starting at off to w, 16 bytes per line.
func Dump(w io.Writer, r *Region, off, n uint64) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	data := r.ReadBytes(off, int(n))
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(buf, "%08x ", off+uint64(i))
		for j := i; j < i+16; j++ {
			if j < end {
				fmt.Fprintf(buf, " %02x", data[j])
			} else {
				_, _ = buf.WriteString("   ")
			}
		}
		_, _ = buf.WriteString("  |")
		for _, b := range data[i:end] {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			_ = buf.WriteByte(b)
		}
		_, _ = buf.WriteString("|\n")
	}
	_, err := w.Write(buf.B)
	return err
}
