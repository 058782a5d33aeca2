// Copyright 2025 Huawei Cloud Computing Technologies Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compaction

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chronogrid/chronogrid/lib/fileops"
)

// LogName returns the compaction log's file name for storage group sg.
func LogName(sg string) string { return sg + ".compaction.log" }

// Log is an append-only, line-oriented redo log for one active compaction:
// source paths, target path, the sequence-space flag, per-device progress
// markers, and a terminal merge-end marker. Every Append fsyncs before
// returning, so "merge end" present on disk means the merge is committed.
type Log struct {
	path string
	f    fileops.File
}

// OpenLog creates (or truncates) the compaction log at path for writing.
func OpenLog(path string) (*Log, error) {
	f, err := fileops.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, f: f}, nil
}

// ReopenLogForAppend reopens an existing compaction log at its end, for
// recovery to continue appending deviceFinished/end markers without
// disturbing the records already fsynced before a crash.
func ReopenLogForAppend(path string) (*Log, error) {
	f, err := fileops.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, f: f}, nil
}

func (l *Log) writeLine(line string) error {
	if _, err := l.f.Write([]byte(line + "\n")); err != nil {
		return err
	}
	return l.f.Sync()
}

func (l *Log) Source(path string) error { return l.writeLine("source " + path) }
func (l *Log) Target(path string) error { return l.writeLine("target " + path) }
func (l *Log) Seq(isSeq bool) error      { return l.writeLine("seq " + strconv.FormatBool(isSeq)) }

func (l *Log) DeviceFinished(device string, offset int64) error {
	return l.writeLine(fmt.Sprintf("device %s", device) + "\n" + fmt.Sprintf("offset %d", offset))
}

func (l *Log) MergeEnd() error { return l.writeLine("end") }

func (l *Log) Close() error { return l.f.Close() }

// Record is one parsed compaction log in its post-crash-recovery shape.
type Record struct {
	Sources      []string
	Target       string
	IsSeq        bool
	Devices      []string
	LastOffset   int64
	MergeEnded   bool
}

// ParseLog reads and parses the compaction log at path.
func ParseLog(path string) (Record, error) {
	f, err := fileops.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	var rec Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.SplitN(line, " ", 2)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "source":
			rec.Sources = append(rec.Sources, fields[1])
		case "target":
			rec.Target = fields[1]
		case "seq":
			rec.IsSeq, _ = strconv.ParseBool(fields[1])
		case "device":
			rec.Devices = append(rec.Devices, fields[1])
		case "offset":
			rec.LastOffset, _ = strconv.ParseInt(fields[1], 10, 64)
		case "end":
			rec.MergeEnded = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
