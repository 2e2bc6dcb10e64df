package daemon

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"caltimer/internal/timers"
	"caltimer/pkg/logx"
)

const outputTail = 2048

// commandJob builds the job for a declarative schedule entry: run argv with
// the fire's context (so the per-run timeout kills the process) and keep the
// tail of combined output for the failure log.
func commandJob(log logx.Logger, name string, argv []string) timers.Job {
	cmdline := strings.Join(argv, " ")
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		err := cmd.Run()
		if err != nil {
			return fmt.Errorf("run %q: %w (output: %s)", cmdline, err, tail(buf.Bytes()))
		}
		if buf.Len() > 0 {
			log.Debug("command output", logx.String("timer", name), logx.String("output", tail(buf.Bytes())))
		}
		return nil
	}
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	return s
}
