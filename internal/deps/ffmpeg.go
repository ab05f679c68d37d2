package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CheckFFmpeg reports whether the configured encoder can be executed and
// supports MP3 output through libmp3lame.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	status := CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Transcodes sources to MP3",
	}})[0]
	if !status.Available {
		return status
	}

	resolved, _ := exec.LookPath(binary)
	if resolved != "" {
		status.Command = resolved
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(probeCtx, binary, "-hide_banner", "-encoders").CombinedOutput() //nolint:gosec
	if err != nil {
		status.Available = false
		status.Detail = fmt.Sprintf("probe encoders: %v", err)
		return status
	}
	if !strings.Contains(string(output), "libmp3lame") {
		status.Available = false
		status.Detail = "libmp3lame encoder not available"
	}
	return status
}
