package nativelog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	filePrefix         = "stdout_"
	fileSuffix         = ".log"
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755
)

// Options configures the process logger.
type Options struct {
	Dir   string
	Keep  int // daily files to retain, 0 keeps everything
	Debug bool
}

// TodayFilename returns the daily log filename.
func TodayFilename(now time.Time) string {
	return filePrefix + now.Format("1-2-06") + fileSuffix
}

// Writer appends to a daily log file, pruning old files on day change.
type Writer struct {
	mu      sync.Mutex
	dir     string
	keep    int
	now     func() time.Time
	current string
}

// NewWriter creates a daily log writer under dir.
func NewWriter(dir string, keep int) (*Writer, error) {
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, keep: keep, now: time.Now}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	name := TodayFilename(w.now())
	if name != w.current {
		w.current = name
		w.prune()
	}

	file, err := os.OpenFile(filepath.Join(w.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
	if err != nil {
		return 0, err
	}

	n, writeErr := file.Write(p)
	closeErr := file.Close()
	if writeErr != nil {
		return n, writeErr
	}
	return n, closeErr
}

func (w *Writer) Sync() error {
	return nil
}

// prune removes the oldest daily files beyond keep. Caller holds w.mu.
func (w *Writer) prune() {
	if w.keep <= 0 {
		return
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}

	type logFile struct {
		path string
		mod  time.Time
	}
	files := make([]logFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) || name == w.current {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(w.dir, name), mod: info.ModTime()})
	}

	// today's file counts towards keep
	excess := len(files) + 1 - w.keep
	if excess <= 0 {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	for _, f := range files[:excess] {
		_ = os.Remove(f.path)
	}
}

// NewZapLogger creates a zap logger writing to stdout and the daily log file.
func NewZapLogger(opts Options) (*zap.Logger, error) {
	writer, err := NewWriter(opts.Dir, opts.Keep)
	if err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(encoder, zapcore.AddSync(writer), level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
