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
	"os"
	"path"
	"path/filepath"

	"github.com/chronogrid/chronogrid/lib/logger"
	"go.uber.org/zap"
)

type file struct {
	of *os.File
}

func (f *file) Close() error                                 { return f.of.Close() }
func (f *file) Seek(offset int64, whence int) (int64, error) { return f.of.Seek(offset, whence) }
func (f *file) Write(b []byte) (int, error)                  { return f.of.Write(b) }
func (f *file) ReadAt(b []byte, off int64) (int, error)       { return f.of.ReadAt(b, off) }
func (f *file) Read(b []byte) (int, error)                    { return f.of.Read(b) }
func (f *file) Name() string                                  { return f.of.Name() }
func (f *file) Truncate(size int64) error                     { return f.of.Truncate(size) }
func (f *file) Sync() error                                   { return f.of.Sync() }
func (f *file) Stat() (os.FileInfo, error)                    { return f.of.Stat() }
func (f *file) Fd() uintptr                                   { return f.of.Fd() }

type vfs struct{}

func NewFS() VFS { return &vfs{} }

func (vfs) Open(name string) (File, error) {
	f, err := os.Open(path.Clean(name))
	if err != nil {
		return nil, err
	}
	return &file{of: f}, nil
}

func (vfs) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fd, err := os.OpenFile(path.Clean(name), flag, perm) // #nosec
	if err != nil {
		return nil, err
	}
	return &file{of: fd}, nil
}

func (vfs) Create(name string) (File, error) {
	f, err := os.Create(path.Clean(name))
	if err != nil {
		return nil, err
	}
	return &file{of: f}, nil
}

func (vfs) Remove(name string) error {
	return os.Remove(name)
}

func (vfs) RemoveAll(dir string) error {
	logger.GetLogger().Info("remove path", zap.String("path", dir))
	return os.RemoveAll(dir)
}

func (vfs) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (vfs) ReadDir(dirname string) ([]os.DirEntry, error) {
	return os.ReadDir(dirname)
}

func (vfs) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

func (vfs) RenameFile(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (vfs) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (vfs) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (vfs) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(path.Clean(filename))
}
