// Copyright Huawei Cloud Computing Technologies Co., Ltd.
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

package rpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/hashicorp/go-msgpack/codec"
)

// maxFrameSize bounds a single frame's payload, guarding against a
// corrupt or hostile length prefix driving an unbounded allocation.
const maxFrameSize = 64 << 20

var msgpackHandle = &codec.MsgpackHandle{}

// ErrFrameTooLarge is returned by ReadFrame when the length prefix exceeds
// maxFrameSize.
var ErrFrameTooLarge = errors.New("rpc: frame exceeds maximum size")

// Encode msgpack-encodes v into a new byte slice, the payload half of a
// frame.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode msgpack-decodes payload into v.
func Decode(payload []byte, v interface{}) error {
	return codec.NewDecoder(bytes.NewReader(payload), msgpackHandle).Decode(v)
}

// WriteFrame writes one length-prefixed frame: a 1-byte kind, a 4-byte
// big-endian payload length, then the payload itself.
func WriteFrame(w io.Writer, kind Kind, payload []byte) error {
	header := make([]byte, 5)
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame written by WriteFrame.
func ReadFrame(r io.Reader) (Kind, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}
	if length == 0 {
		return Kind(header[0]), nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return Kind(header[0]), payload, nil
}

// WriteMessage encodes v and writes it as one frame of the given kind.
func WriteMessage(w io.Writer, kind Kind, v interface{}) error {
	payload, err := Encode(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, kind, payload)
}

// ReadMessage reads one frame and decodes its payload into v, returning
// the frame's kind.
func ReadMessage(r io.Reader, v interface{}) (Kind, error) {
	kind, payload, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		return kind, nil
	}
	return kind, Decode(payload, v)
}
