//go:build linux

// Package xattr implements the marker extended-attribute binding of
// spec.md's MarkerAttribute: reading and writing
// "trusted.ZFSCTool:compress" on a file. This is one of the explicit
// "platform-specific extended-attribute bindings" the core treats as an
// external collaborator (spec.md §1), but the module has no other home
// for it.
package xattr

import (
	"golang.org/x/sys/unix"
)

// Get reads name from path, following symlinks unless followSymlinks is
// false. ok is false when the attribute is absent or unsupported by the
// filesystem — never an error in that case, matching the "tolerate
// unknown/malformed" contract of the marker attribute.
func Get(path, name string, followSymlinks bool) (value string, ok bool, err error) {
	getter := unix.Getxattr
	if !followSymlinks {
		getter = unix.Lgetxattr
	}

	sz, err := getter(path, name, nil)
	if err != nil || sz == 0 {
		return "", false, nil
	}

	buf := make([]byte, sz)
	n, err := getter(path, name, buf)
	if err != nil {
		return "", false, nil
	}
	return string(buf[:n]), true, nil
}

// Set writes name=value on path. Callers must tolerate EACCES/EPERM
// themselves per spec.md §4.5 WRITE_MARKER.
func Set(path, name, value string) error {
	setter := unix.Setxattr
	return setter(path, name, []byte(value), 0)
}

// SetFd writes name=value on an already-open file descriptor, used right
// after a rewrite while the file is still held open.
func SetFd(fd int, name, value string) error {
	return unix.Fsetxattr(fd, name, []byte(value), 0)
}

// List returns every extended attribute name set on path.
func List(path string) ([]string, error) {
	sz, err := unix.Listxattr(path, nil)
	if err != nil || sz == 0 {
		return nil, err
	}
	buf := make([]byte, sz)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		return nil, err
	}
	return splitNames(buf[:n]), nil
}

// splitNames splits a NUL-separated attribute-name buffer, as returned
// by listxattr(2), into individual strings.
func splitNames(buf []byte) []string {
	var names []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return names
}
