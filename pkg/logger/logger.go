package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	WarnLog  *log.Logger
	DebugLog *log.Logger
	logFile  *lumberjack.Logger
	level    = INFO
)

const (
	INFO = iota
	DEBUG
)

// InitLogger writes to stdout and to a rotating log file.
func InitLogger(filename string, lvl int) error {
	logFile = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	// Open the file now so a bad path fails here.
	if _, err := logFile.Write(nil); err != nil {
		logFile = nil
		return err
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	setOutput(multiWriter, multiWriter, lvl)
	return nil
}

// Init logs to the console only.
func Init() {
	setOutput(os.Stdout, os.Stderr, level)
}

// SetLevel toggles debug output.
func SetLevel(lvl int) {
	level = lvl
	if InfoLog == nil {
		Init()
	}
}

func setOutput(out, errOut io.Writer, lvl int) {
	level = lvl
	InfoLog = log.New(out, "INFO: ", log.Ldate|log.Ltime)
	ErrorLog = log.New(errOut, "ERROR: ", log.Ldate|log.Ltime)
	WarnLog = log.New(out, "WARN: ", log.Ldate|log.Ltime)
	DebugLog = log.New(out, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// SetOutput redirects every level to w. Used by tests.
func SetOutput(w io.Writer) {
	setOutput(w, w, level)
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Info(format string, v ...interface{}) {
	if InfoLog == nil {
		Init()
	}
	InfoLog.Printf(format, v...)
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Error(format string, v ...interface{}) {
	if ErrorLog == nil {
		Init()
	}
	ErrorLog.Printf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}

func Warn(format string, v ...interface{}) {
	if WarnLog == nil {
		Init()
	}
	WarnLog.Printf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}

func Debug(format string, v ...interface{}) {
	if level < DEBUG {
		return
	}
	if DebugLog == nil {
		Init()
	}
	DebugLog.Output(2, fmt.Sprintf(format, v...))
}

// DebugEnabled reports whether --debug is on.
func DebugEnabled() bool { return level >= DEBUG }
