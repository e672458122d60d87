// Package audio measures the loudness of a live microphone stream.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// MinDB is the minimum dB level (silence).
	MinDB = -60.0
	// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
	MaxSampleValue = 32768.0
	// ClipThreshold is slightly below max to catch near-clips.
	ClipThreshold int16 = 32760
)

// LevelData holds raw sample accumulator data for level calculation.
type LevelData struct {
	SumSquaresL float64
	SumSquaresR float64
	PeakL       float64
	PeakR       float64
	ClipCountL  int
	ClipCountR  int
	SampleCount int
}

// ProcessSamples accumulates level data from S16LE stereo PCM.
func ProcessSamples(buf []byte, data *LevelData) {
	for i := 0; i+3 < len(buf); i += 4 {
		leftSample := int16(binary.LittleEndian.Uint16(buf[i:]))
		rightSample := int16(binary.LittleEndian.Uint16(buf[i+2:]))
		left := float64(leftSample)
		right := float64(rightSample)

		data.SumSquaresL += left * left
		data.SumSquaresR += right * right

		if absL := math.Abs(left); absL > data.PeakL {
			data.PeakL = absL
		}
		if absR := math.Abs(right); absR > data.PeakR {
			data.PeakR = absR
		}

		if leftSample >= ClipThreshold || leftSample <= -ClipThreshold {
			data.ClipCountL++
		}
		if rightSample >= ClipThreshold || rightSample <= -ClipThreshold {
			data.ClipCountR++
		}

		data.SampleCount++
	}
}

// Levels contains calculated audio levels in dB.
type Levels struct {
	RMSLeft   float64
	RMSRight  float64
	PeakLeft  float64
	PeakRight float64
	ClipLeft  int
	ClipRight int
}

// RMS returns the louder channel's RMS level.
func (l Levels) RMS() float64 {
	return max(l.RMSLeft, l.RMSRight)
}

// Peak returns the louder channel's peak level.
func (l Levels) Peak() float64 {
	return max(l.PeakLeft, l.PeakRight)
}

// Clipped reports whether any sample clipped.
func (l Levels) Clipped() bool {
	return l.ClipLeft > 0 || l.ClipRight > 0
}

// CalculateLevels computes RMS and peak levels from accumulated sample data.
func CalculateLevels(data *LevelData) Levels {
	if data.SampleCount == 0 {
		return Levels{
			RMSLeft: MinDB, RMSRight: MinDB,
			PeakLeft: MinDB, PeakRight: MinDB,
		}
	}

	rmsL := math.Sqrt(data.SumSquaresL / float64(data.SampleCount))
	rmsR := math.Sqrt(data.SumSquaresR / float64(data.SampleCount))

	return Levels{
		RMSLeft:   toDB(rmsL),
		RMSRight:  toDB(rmsR),
		PeakLeft:  toDB(data.PeakL),
		PeakRight: toDB(data.PeakR),
		ClipLeft:  data.ClipCountL,
		ClipRight: data.ClipCountR,
	}
}

// toDB converts a sample magnitude to dBFS, floored at MinDB.
func toDB(v float64) float64 {
	return max(20*math.Log10(v/MaxSampleValue), MinDB)
}

// Reset resets accumulators for the next measurement period.
func (d *LevelData) Reset() {
	*d = LevelData{}
}

// DecodeMono converts interleaved S16LE PCM into mono samples in [-1, 1] by
// averaging the channels. Samples are appended to dst.
func DecodeMono(pcm []byte, channels int, dst []float64) []float64 {
	if channels < 1 {
		return dst
	}
	frame := 2 * channels
	for i := 0; i+frame <= len(pcm); i += frame {
		var sum float64
		for c := range channels {
			sum += float64(int16(binary.LittleEndian.Uint16(pcm[i+2*c:])))
		}
		dst = append(dst, sum/float64(channels)/MaxSampleValue)
	}
	return dst
}
