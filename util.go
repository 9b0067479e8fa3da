package pihat

// utility bits shared by the hat runners

import (
	"log"

	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"
)

type flogger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// ThreadLogger tags each runner goroutine's output
type ThreadLogger struct {
	name string
}

func (t *ThreadLogger) Printf(format string, v ...interface{}) {
	log.Printf("["+t.name+"] "+format, v...)
}

func (t *ThreadLogger) Println(v ...interface{}) {
	args := append([]interface{}{"[" + t.name + "]"}, v...)
	log.Println(args...)
}

type runtimeConfig struct {
	clock  clockwork.Clock
	logger flogger
}

func initRuntime() runtimeConfig {
	return runtimeConfig{
		clock:  clockwork.NewRealClock(),
		logger: &ThreadLogger{name: "hat"},
	}
}

// setupLogging points the stdlib logger at a rotating file; empty
// path leaves it on stderr (what you want during development)
func setupLogging(s *settings) {
	logFile := s.GetString("logFile")
	if logFile == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	})
}
