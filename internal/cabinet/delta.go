package cabinet

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// minDictSize is the smallest previous file used as a dictionary.
const minDictSize = 8

// Delta builds a patch turning previous into current by compressing current
// with previous as a raw zstd dictionary.
func Delta(previous, current []byte) ([]byte, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedBestCompression)}
	if len(previous) >= minDictSize {
		opts = append(opts, zstd.WithEncoderDictRaw(0, previous))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create delta encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(current, nil), nil
}

// ApplyDelta reverses Delta.
func ApplyDelta(previous, patch []byte) ([]byte, error) {
	var opts []zstd.DOption
	if len(previous) >= minDictSize {
		opts = append(opts, zstd.WithDecoderDictRaw(0, previous))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create delta decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(patch, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to apply delta: %w", err)
	}
	return out, nil
}
