package gpu

import (
	"log"
	"os"
)

// Debug turns on diagnostic output from the dispatch path.
var Debug bool

var logger = log.New(os.Stderr, "[gpu] ", log.LstdFlags|log.Lmicroseconds)

// Log writes a diagnostic line. Callers gate it on Debug.
func Log(format string, args ...any) {
	logger.Printf(format, args...)
}
