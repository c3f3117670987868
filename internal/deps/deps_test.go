package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gwlsn/mediaconv/internal/config"
)

var stubScript = []byte("#!/bin/sh\nexit 0\n")

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, stubScript, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not executable on windows")
	}
}

func TestCheckBinaries(t *testing.T) {
	skipOnWindows(t)
	present := filepath.Join(t.TempDir(), "present")
	writeStub(t, present)

	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
}

func TestResolveBinaryBundled(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	bundled := filepath.Join(root, "ffmpeg", "bin", executableName("ffmpeg"))
	writeStub(t, bundled)

	status := ResolveBinary("ffmpeg", "", []string{t.TempDir(), root})
	if !status.Available {
		t.Fatalf("expected bundled ffmpeg, got detail %q", status.Detail)
	}
	if status.Command != bundled {
		t.Fatalf("expected command %q, got %q", bundled, status.Command)
	}
}

func TestResolveFFprobeDefaultConfigFindsBundle(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	bundled := filepath.Join(root, "ffmpeg", "bin", executableName("ffprobe"))
	writeStub(t, bundled)
	t.Setenv(ResourcesEnv, root)

	status := ResolveFFprobe(config.DefaultConfig().FFprobePath)
	if !status.Available || status.Command != bundled {
		t.Fatalf("expected bundled ffprobe %q, got %#v", bundled, status)
	}
}

func TestResolveBinaryPathFallback(t *testing.T) {
	skipOnWindows(t)
	binDir := t.TempDir()
	onPath := filepath.Join(binDir, executableName("ffmpeg"))
	writeStub(t, onPath)
	t.Setenv("PATH", binDir)

	status := ResolveBinary("ffmpeg", "", []string{t.TempDir()})
	if !status.Available || status.Command != onPath {
		t.Fatalf("expected PATH ffmpeg %q, got %#v", onPath, status)
	}
}

func TestResolveBinaryConfiguredMissing(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	writeStub(t, filepath.Join(root, "ffmpeg", "bin", "ffmpeg"))

	status := ResolveBinary("ffmpeg", filepath.Join(t.TempDir(), "nope"), []string{root})
	if status.Available {
		t.Fatal("a missing configured binary must not fall back to the bundle")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message")
	}
}

func TestResolveBinaryNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := ResolveBinary("ffmpeg", "", []string{t.TempDir()})
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Command != "ffmpeg" || status.Detail == "" {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestBundleRootsHonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ResourcesEnv, dir)
	roots := BundleRoots()
	if len(roots) == 0 || roots[0] != dir {
		t.Fatalf("BundleRoots() = %v, want %q first", roots, dir)
	}
}
