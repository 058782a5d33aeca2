/*
Copyright 2022 Huawei Cloud Computing Technologies Co., Ltd.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fileops

import (
	"io"
	"os"
)

// File is the subset of *os.File the compaction and meta-persistence paths need.
type File interface {
	io.Closer
	io.Reader
	io.Seeker
	io.Writer
	io.ReaderAt
	Name() string
	Truncate(size int64) error
	Sync() error
	Stat() (os.FileInfo, error)
	Fd() uintptr
}

// VFS is the file-system indirection used across the node so tests can swap
// in an in-memory implementation without touching call sites.
type VFS interface {
	Open(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Create(name string) (File, error)
	Remove(name string) error
	RemoveAll(path string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(dirname string) ([]os.DirEntry, error)
	Glob(pattern string) ([]string, error)
	// RenameFile renames oldPath to newPath, replacing newPath if it exists.
	RenameFile(oldPath, newPath string) error
	Stat(name string) (os.FileInfo, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
}

var targetFS VFS = NewFS()

func Open(name string) (File, error) { return targetFS.Open(name) }

func OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return targetFS.OpenFile(name, flag, perm)
}

func Create(name string) (File, error) { return targetFS.Create(name) }

func Remove(name string) error { return targetFS.Remove(name) }

func RemoveAll(path string) error { return targetFS.RemoveAll(path) }

func MkdirAll(path string, perm os.FileMode) error { return targetFS.MkdirAll(path, perm) }

func ReadDir(dirname string) ([]os.DirEntry, error) { return targetFS.ReadDir(dirname) }

func Glob(pattern string) ([]string, error) { return targetFS.Glob(pattern) }

// RenameFile renames oldPath to newPath through the active VFS, replacing
// newPath if it exists.
func RenameFile(oldPath, newPath string) error { return targetFS.RenameFile(oldPath, newPath) }

func Stat(name string) (os.FileInfo, error) { return targetFS.Stat(name) }

func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return targetFS.WriteFile(filename, data, perm)
}

func ReadFile(filename string) ([]byte, error) { return targetFS.ReadFile(filename) }

// Exists is a small convenience used by recovery code that needs to branch on
// presence without caring about the error kind.
func Exists(name string) bool {
	_, err := targetFS.Stat(name)
	return err == nil
}
