package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// ReadWAVFile loads a PCM16 mono WAV file and returns normalized float32
// samples in [-1, 1] plus the sample rate.
func ReadWAVFile(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return decodeWAV(data)
}

// WritePCM16WAV writes mono float32 samples as a PCM16 WAV file.
func WritePCM16WAV(path string, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	dataSize := len(samples) * 2
	riffSize := 36 + dataSize
	byteRate := sampleRate * 2

	header := make([]byte, 44)
	copy(header[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:], uint32(riffSize))
	copy(header[8:], []byte("WAVEfmt "))
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], 1)
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:], 2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))

	if _, err := file.Write(header); err != nil {
		return err
	}

	payload := make([]byte, dataSize)
	for i, sample := range samples {
		v := float64(sample)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(int16(math.Round(v*32767))))
	}
	if _, err := file.Write(payload); err != nil {
		return err
	}

	return nil
}

func decodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("wav: short fmt chunk")
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != 1 {
				return nil, 0, fmt.Errorf("wav: unsupported format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word aligned.
		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}

	if sampleRate == 0 || pcm == nil {
		return nil, 0, errors.New("wav: missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("wav: unsupported bit depth %d, want 16", bits)
	}
	if channels < 1 {
		return nil, 0, errors.New("wav: no channels")
	}

	const scale = 1.0 / 32768.0
	frames := len(pcm) / 2 / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		// Downmix by averaging channels; decode normally yields mono.
		var sum float64
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(pcm[(i*channels+ch)*2:]))
			sum += float64(v)
		}
		samples[i] = float32(sum / float64(channels) * scale)
	}

	return samples, sampleRate, nil
}
