package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// systemDirectories returns the fixed list of critical system
// directories scanned by ScanSystem and folded into QuickScan.
func systemDirectories() []string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return []string{
			root,
			filepath.Join(root, "System32"),
			filepath.Join(root, "SysWOW64"),
		}
	}
	return []string{"/etc", "/boot", "/usr/lib", "/usr/bin", "/var/lib"}
}

// quickScanTargets appends temp directories and common user folders to
// the system directory list.
func quickScanTargets() []string {
	targets := append([]string{}, systemDirectories()...)
	targets = append(targets, os.TempDir())

	home, err := os.UserHomeDir()
	if err != nil {
		return targets
	}
	for _, dir := range []string{"Desktop", "Downloads", "Documents"} {
		targets = append(targets, filepath.Join(home, dir))
	}
	return targets
}

// virtualFilesystems are mount types that do not hold scannable user
// data and are excluded from FullScan's drive enumeration.
var virtualFilesystems = map[string]bool{
	"proc":       true,
	"sysfs":      true,
	"devtmpfs":   true,
	"devpts":     true,
	"tmpfs":      true,
	"cgroup":     true,
	"cgroup2":    true,
	"overlay":    true,
	"squashfs":   true,
	"mqueue":     true,
	"debugfs":    true,
	"tracefs":    true,
	"securityfs": true,
	"autofs":     true,
}

// enumerateDrives lists every accessible fixed or removable filesystem
// mount point for FullScan. On Linux it reads /proc/mounts, filtering
// out virtual and pseudo filesystems; elsewhere it falls back to the
// root of the filesystem.
func enumerateDrives() []string {
	if runtime.GOOS != "linux" {
		return []string{string(os.PathSeparator)}
	}

	f, err := os.Open("/proc/mounts")
	if err != nil {
		return []string{"/"}
	}
	defer f.Close()

	var mounts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if virtualFilesystems[fsType] {
			continue
		}
		mounts = append(mounts, mountPoint)
	}
	if len(mounts) == 0 {
		return []string{"/"}
	}
	return mounts
}
