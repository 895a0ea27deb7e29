package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"layeh.com/gopus"
)

// OpusConn is where encoded frames go. *discordgo.VoiceConnection is
// adapted to this in the discord package; tests use an in-memory fake.
type OpusConn interface {
	Speaking(on bool) error
	OpusSend() chan<- []byte
}

// Play reads PCM from src, applies volume/pause from ctl, encodes to Opus
// and sends frames until the source ends or stop is closed. A natural end
// of stream returns nil. Play closes src before returning.
func Play(src *Source, conn OpusConn, ctl *Controls, stop <-chan struct{}) error {
	defer src.Close()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	if err := conn.Speaking(true); err != nil {
		return fmt.Errorf("speaking on: %w", err)
	}
	defer conn.Speaking(false)

	pcmBuf := make([]byte, frameSize*channels*2)
	samples := make([]int16, frameSize*channels)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if ctl.Paused() {
			select {
			case <-stop:
				return nil
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		if _, err := io.ReadFull(src.r, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		vol := ctl.Volume()
		for i := range samples {
			s := float64(int16(binary.LittleEndian.Uint16(pcmBuf[i*2:i*2+2]))) * vol
			switch {
			case s > 32767:
				samples[i] = 32767
			case s < -32768:
				samples[i] = -32768
			default:
				samples[i] = int16(s)
			}
		}

		frame, err := encoder.Encode(samples, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case conn.OpusSend() <- frame:
		case <-stop:
			return nil
		}
	}
}
