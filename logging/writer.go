package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	// Json 为 true 时以 JSON 行输出
	Json   bool
	Output io.Writer
}

// ConsoleLoggerProvider 控制台日志提供者
type ConsoleLoggerProvider struct {
	sink *sink
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.TimestampFormat == "" {
		options.TimestampFormat = "2006-01-02 15:04:05"
	}
	var formatter Formatter
	if options.Json {
		formatter = NewJsonFormatter()
	} else {
		formatter = &TextFormatter{
			IncludeTimestamp: options.IncludeTimestamp,
			TimestampFormat:  options.TimestampFormat,
			ColorOutput:      options.ColorOutput,
		}
	}
	return &ConsoleLoggerProvider{sink: newSink(options.Output, formatter)}
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &writerLogger{sink: p.sink, category: category}
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.sink.setLevel(level)
}

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path string
	Json bool
	// BufferSize 大于 0 时使用异步写入
	BufferSize int
}

// FileLoggerProvider 文件日志提供者
type FileLoggerProvider struct {
	options FileLoggerOptions
	sink    *sink
	file    *os.File
	async   *AsyncWriter
	mu      sync.Mutex
	level   LogLevel
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	return &FileLoggerProvider{options: options, level: LogLevelInfo}
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			p.sink = newSink(os.Stderr, NewTextFormatter())
		} else {
			p.file = file
			var formatter Formatter = NewTextFormatter()
			if p.options.Json {
				formatter = NewJsonFormatter()
			}
			p.sink = newSink(file, formatter)
			if p.options.BufferSize > 0 {
				p.async = NewAsyncWriter(file, formatter, p.options.BufferSize)
				p.sink.async = p.async
			}
		}
		p.sink.setLevel(p.level)
	}

	return &writerLogger{sink: p.sink, category: category}
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	if p.sink != nil {
		p.sink.setLevel(level)
	}
}

// Close 刷新异步队列并关闭文件。
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.async != nil {
		p.async.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// sink 是多个 writerLogger 共享的输出端。
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
	async     *AsyncWriter
	level     LogLevel
}

func newSink(out io.Writer, formatter Formatter) *sink {
	return &sink{out: out, formatter: formatter, level: LogLevelInfo}
}

func (s *sink) setLevel(level LogLevel) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

func (s *sink) write(entry *LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Level < s.level {
		return
	}
	if s.async != nil {
		s.async.WriteLog(entry)
		return
	}
	data, err := s.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log format error: %v\n", err)
		return
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	s.out.Write(data)
}

// writerLogger 把日志条目交给 sink 格式化输出。
type writerLogger struct {
	sink     *sink
	category string
	fields   []Field
}

func (l *writerLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *writerLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *writerLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *writerLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *writerLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *writerLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.sink.write(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *writerLogger) WithFields(fields ...Field) Logger {
	return &writerLogger{sink: l.sink, category: l.category, fields: mergeFields(l.fields, fields)}
}

func (l *writerLogger) WithCategory(category string) Logger {
	return &writerLogger{sink: l.sink, category: category, fields: l.fields}
}

// colorize 为日志级别添加颜色
func colorize(level LogLevel, text string) string {
	const (
		reset   = "\033[0m"
		gray    = "\033[90m"
		cyan    = "\033[36m"
		green   = "\033[32m"
		yellow  = "\033[33m"
		red     = "\033[31m"
		magenta = "\033[35m"
	)

	switch level {
	case LogLevelTrace:
		return gray + text + reset
	case LogLevelDebug:
		return cyan + text + reset
	case LogLevelInfo:
		return green + text + reset
	case LogLevelWarn:
		return yellow + text + reset
	case LogLevelError:
		return red + text + reset
	case LogLevelFatal:
		return magenta + text + reset
	default:
		return text
	}
}
