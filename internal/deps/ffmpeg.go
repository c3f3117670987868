package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResourcesEnv names a directory holding a bundled ffmpeg/bin tree.
const ResourcesEnv = "MEDIACONV_RESOURCES"

// BundleRoots returns the directories searched for a bundled ffmpeg/bin
// tree: $MEDIACONV_RESOURCES first, then the executable's directory.
func BundleRoots() []string {
	var roots []string
	if dir := strings.TrimSpace(os.Getenv(ResourcesEnv)); dir != "" {
		roots = append(roots, dir)
	}
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	return roots
}

// ResolveFFmpeg reports the ffmpeg binary conversions will execute.
func ResolveFFmpeg(configured string) Status {
	status := ResolveBinary("ffmpeg", configured, BundleRoots())
	status.Description = "Transcodes audio and video"
	return status
}

// ResolveFFprobe reports the ffprobe binary used for input durations.
func ResolveFFprobe(configured string) Status {
	status := ResolveBinary("ffprobe", configured, BundleRoots())
	status.Description = "Reads input duration for progress percentages"
	status.Optional = true
	return status
}

// ResolveBinary finds name in this order: an explicitly configured command,
// <root>/ffmpeg/bin/<name> for each root, then PATH. A configured command
// that cannot be found is reported as unavailable without falling back.
func ResolveBinary(name, configured string, roots []string) Status {
	result := Status{Name: name}

	if cmd := strings.TrimSpace(configured); cmd != "" {
		result.Command = cmd
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			result.Detail = fmt.Sprintf("configured binary %q not found", cmd)
			return result
		}
		result.Command = resolved
		result.Available = true
		return result
	}

	for _, root := range roots {
		candidate := filepath.Join(root, "ffmpeg", "bin", executableName(name))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}

	if resolved, err := exec.LookPath(name); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
