//go:build !unix

package ffmpeg

import "os/exec"

// configureProcess keeps exec.CommandContext's default Kill on cancel.
func configureProcess(cmd *exec.Cmd) {}
