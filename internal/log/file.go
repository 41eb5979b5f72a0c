package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	FilePrefix = "app_"
	FileSuffix = ".log"
	fileLayout = "2006-01-02"
)

// FileName returns the log file name for the given day.
func FileName(day time.Time) string {
	return FilePrefix + day.Format(fileLayout) + FileSuffix
}

// DailyFile is an io.Writer that appends to LOG_DIR/app_YYYY-MM-DD.log and
// switches files when the local date changes.
type DailyFile struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewDailyFile(dir string) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DailyFile{dir: dir, now: time.Now}, nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().Format(fileLayout)
	if d.file == nil || day != d.day {
		if d.file != nil {
			d.file.Close()
			d.file = nil
		}
		path := filepath.Join(d.dir, FilePrefix+day+FileSuffix)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, fmt.Errorf("open log file %s: %w", path, err)
		}
		d.file = f
		d.day = day
	}
	return d.file.Write(p)
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
