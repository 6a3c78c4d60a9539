package monitor

import (
	"path/filepath"
	"strings"
)

// temp and system-store substrings are matched case-insensitively
// anywhere in the path.
var rejectedPathSubstrings = []string{
	`\temp\`,
	`\tmp\`,
	`\appdata\local\temp\`,
	"/tmp/",
	"/var/tmp/",
	"winsxs",
	"servicing",
	"system volume information",
}

var deniedExtensions = map[string]bool{
	".log":  true,
	".tmp":  true,
	".temp": true,
	".swp":  true,
	".bak":  true,
	".txt":  true,
	".ini":  true,
	".xml":  true,
	".json": true,
}

// admit reports whether path survives the File Monitor's admission
// filter and should be enqueued for scanning.
func admit(path string) bool {
	lower := strings.ToLower(path)
	for _, substr := range rejectedPathSubstrings {
		if strings.Contains(lower, substr) {
			return false
		}
	}
	return !deniedExtensions[strings.ToLower(filepath.Ext(path))]
}

type priorityClass struct {
	extensions map[string]bool
	priority   int
}

var priorityTable = []priorityClass{
	{extensions: extSet(".exe", ".dll", ".scr", ".com", ".pif"), priority: 10},
	{extensions: extSet(".bat", ".cmd", ".ps1", ".vbs", ".js"), priority: 7},
	{extensions: extSet(".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx"), priority: 5},
	{extensions: extSet(".zip", ".rar", ".7z", ".tar"), priority: 3},
}

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// priorityFor maps path's lowercased extension to its priority class,
// defaulting to 1 for anything that survived admission but matches no
// named class.
func priorityFor(path string) int {
	ext := strings.ToLower(filepath.Ext(path))
	for _, class := range priorityTable {
		if class.extensions[ext] {
			return class.priority
		}
	}
	return 1
}
