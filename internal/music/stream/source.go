// Package stream turns tracks into 48kHz stereo PCM and pushes it to a
// voice connection as Opus frames.
package stream

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Source is an open PCM stream plus the cleanup for its producer.
type Source struct {
	r       io.ReadCloser
	cleanup func()
}

// Close releases the reader and its producer process, if any.
func (s *Source) Close() {
	if s.r != nil {
		s.r.Close()
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}

// FromReader wraps an already-open PCM reader, used by tests and by any
// producer that is not an ffmpeg process.
func FromReader(r io.ReadCloser) *Source {
	return &Source{r: r}
}

// OpenLocal decodes a local audio file. With normalize set, a loudnorm
// filter evens the file out against typical stream loudness.
func OpenLocal(path string, normalize bool) (*Source, error) {
	args := []string{"-i", path}
	if normalize {
		args = append(args, "-af", "loudnorm=I=-16:TP=-1.5:LRA=11")
	}
	args = append(args, pcmOutputArgs()...)
	return startFFmpeg(args)
}

// OpenRemote decodes a resolved stream URL, reconnecting through transient
// network drops.
func OpenRemote(url string) (*Source, error) {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
	}
	args = append(args, pcmOutputArgs()...)
	return startFFmpeg(args)
}

func pcmOutputArgs() []string {
	return []string{
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

func startFFmpeg(args []string) (*Source, error) {
	cmd := exec.Command("ffmpeg", args...)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	cleanup := func() {
		cmd.Process.Kill()
		cmd.Wait()
	}

	return &Source{r: reader, cleanup: cleanup}, nil
}
