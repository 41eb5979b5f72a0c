//go:build !linux

package metrics

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("not supported on this platform")

func memoryUsage() (usage, error) {
	return usage{}, errUnsupported
}

func diskUsage(string) (usage, error) {
	return usage{}, errUnsupported
}

func isWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
