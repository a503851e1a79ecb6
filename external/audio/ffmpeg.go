package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/foxseedlab/kotodama/internal/audio"
)

// FFmpeg transcodes anything ffmpeg reads into 48 kHz stereo s16le PCM.
type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

var _ audio.Transcoder = (*FFmpeg)(nil)

func (f *FFmpeg) Decode(ctx context.Context, src io.Reader) (io.ReadCloser, error) {
	cmd := f.Command(ctx, "pipe:0")
	cmd.Stdin = src
	return StartPipeline(cmd)
}

func (f *FFmpeg) DecodeFile(ctx context.Context, path string) (io.ReadCloser, error) {
	return StartPipeline(f.Command(ctx, path))
}

// Command builds an ffmpeg invocation reading input. Remote inputs get the
// reconnect flags.
func (f *FFmpeg) Command(ctx context.Context, input string) *exec.Cmd {
	args := make([]string, 0, 16)
	if isRemote(input) {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args,
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.PlaybackChannels),
		"-loglevel", "warning",
		"pipe:1",
	)
	return exec.CommandContext(ctx, f.path, args...)
}

func isRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// ProcessStream is the stdout of the last command of a pipeline. Closing it
// kills and reaps every process.
type ProcessStream struct {
	io.ReadCloser
	cmds   []*exec.Cmd
	stderr *tailBuffer
	once   sync.Once
}

// StartPipeline starts cmds in order and returns the last one's stdout. Any
// stdin wiring between commands must be done by the caller beforehand.
func StartPipeline(cmds ...*exec.Cmd) (*ProcessStream, error) {
	if len(cmds) == 0 {
		return nil, fmt.Errorf("empty pipeline")
	}
	tail := &tailBuffer{limit: 4096}
	for _, cmd := range cmds {
		if cmd.Stderr == nil {
			cmd.Stderr = tail
		}
	}
	last := cmds[len(cmds)-1]
	stdout, err := last.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			killAll(cmds[:i])
			return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
		}
	}
	return &ProcessStream{ReadCloser: stdout, cmds: cmds, stderr: tail}, nil
}

func (p *ProcessStream) Close() error {
	p.once.Do(func() {
		_ = p.ReadCloser.Close()
		killAll(p.cmds)
	})
	return nil
}

// Stderr returns the tail of everything the processes wrote to stderr.
func (p *ProcessStream) Stderr() string {
	return p.stderr.String()
}

func killAll(cmds []*exec.Cmd) {
	for _, cmd := range cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	for _, cmd := range cmds {
		if cmd.Process != nil {
			_ = cmd.Wait()
		}
	}
}

type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
