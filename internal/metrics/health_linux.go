//go:build linux

package metrics

import (
	"golang.org/x/sys/unix"
)

func memoryUsage() (usage, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return usage{}, err
	}
	unit := uint64(info.Unit)
	total := uint64(info.Totalram) * unit
	available := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if total == 0 {
		return usage{}, nil
	}
	return usage{
		usedPercent: float64(total-available) / float64(total) * 100,
		free:        available,
	}, nil
}

func diskUsage(path string) (usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return usage{}, err
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	if total == 0 {
		return usage{}, nil
	}
	used := (st.Blocks - st.Bfree) * bsize
	return usage{
		usedPercent: float64(used) / float64(total) * 100,
		free:        st.Bavail * bsize,
	}, nil
}

func isWritable(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
