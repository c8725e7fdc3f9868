//go:build darwin

package xattr

import (
	"golang.org/x/sys/unix"
)

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

func Set(path, name, value string) error {
	return unix.Setxattr(path, name, []byte(value), 0)
}

func SetFd(fd int, name, value string) error {
	return unix.Fsetxattr(fd, name, []byte(value), 0)
}

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
