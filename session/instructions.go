package session

import (
	"log"
	"os"
	"strings"
)

// LoadInstructions reads the agent instructions file. A missing or
// unreadable file yields empty instructions, never an error: the session
// must still start with upstream defaults.
func LoadInstructions(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("instructions file %s not loaded: %v", path, err)
		return ""
	}
	return strings.TrimSpace(string(data))
}
