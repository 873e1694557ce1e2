package logger

import (
	"io"
	"log"
	"os"
	"sync"
)

// Log discards output until Init points it at a file.
var Log = log.New(io.Discard, "", log.LstdFlags)

var (
	mu   sync.Mutex
	file *os.File
)

func Init(logFilePath string) error {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	Log.SetOutput(f)
	if file != nil {
		_ = file.Close()
	}
	file = f
	Log.Println("Logger initialized.")
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	Log.SetOutput(io.Discard)
	if file != nil {
		_ = file.Close()
		file = nil
	}
}
