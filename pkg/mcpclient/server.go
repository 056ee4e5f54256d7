package mcpclient

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Server describes the MCP server subprocess.
type Server struct {
	Command string
	Args    []string
	Env     map[string]string
}

// ResolveServer picks the interpreter for a server script by its extension.
func ResolveServer(scriptPath string) (Server, error) {
	scriptPath = strings.TrimSpace(scriptPath)
	switch strings.ToLower(filepath.Ext(scriptPath)) {
	case ".py":
		return Server{Command: "python", Args: []string{scriptPath}}, nil
	case ".js":
		return Server{Command: "node", Args: []string{scriptPath}}, nil
	default:
		return Server{}, fmt.Errorf("server script must be a .py or .js file: %q", scriptPath)
	}
}

// serverEnv keeps only low-risk variables from the parent environment and
// appends the server's own settings in key order.
func serverEnv(extra map[string]string) []string {
	allowedPrefixes := []string{
		"PATH=",
		"HOME=",
		"USER=",
		"LOGNAME=",
		"SHELL=",
		"TMPDIR=",
		"TMP=",
		"TEMP=",
		"LANG=",
		"LC_",
		"TERM=",
		"SYSTEMROOT=",
	}

	env := make([]string, 0, len(allowedPrefixes)+len(extra))
	for _, kv := range os.Environ() {
		for _, prefix := range allowedPrefixes {
			if strings.HasPrefix(kv, prefix) {
				env = append(env, kv)
				break
			}
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
