package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncWriter 在后台协程中格式化并写入日志，队列满时阻塞调用方
type AsyncWriter struct {
	out       io.Writer
	formatter Formatter
	entries   chan *LogEntry
	done      chan struct{}
	closeOnce sync.Once
	onError   func(error)
}

// NewAsyncWriter 创建异步写入器，bufferSize 为队列长度
func NewAsyncWriter(out io.Writer, formatter Formatter, bufferSize int) *AsyncWriter {
	w := &AsyncWriter{
		out:       out,
		formatter: formatter,
		entries:   make(chan *LogEntry, bufferSize),
		done:      make(chan struct{}),
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "logging: async writer: %v\n", err)
		},
	}
	go w.run()
	return w
}

// SetErrorHandler 设置格式化或写入失败时的回调
func (w *AsyncWriter) SetErrorHandler(handler func(error)) {
	if handler != nil {
		w.onError = handler
	}
}

// WriteLog 把日志条目放入队列
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.entries <- entry
}

// Close 写完队列中剩余的日志后返回，可重复调用
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() { close(w.entries) })
	<-w.done
	return nil
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for entry := range w.entries {
		data, err := w.formatter.Format(entry)
		if err != nil {
			w.onError(err)
			continue
		}
		if _, err := w.out.Write(data); err != nil {
			w.onError(err)
		}
	}
}
