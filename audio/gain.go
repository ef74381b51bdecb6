package audio

import (
	"math"

	"github.com/lixenwraith/jamplug/parameter"
)

// PanGains returns equal-power left/right multipliers for pan in [-1, 1].
// Center yields cos(π/4) ≈ 0.707 per side.
func PanGains(pan float64) (left, right float64) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}

// ClampVolume bounds a linear volume to the supported range.
func ClampVolume(v float64) float64 {
	if v < parameter.MinVolume {
		return parameter.MinVolume
	}
	if v > parameter.MaxVolume {
		return parameter.MaxVolume
	}
	return v
}

// VolumeToDB maps linear volume to decibels; 0 maps to -Inf.
func VolumeToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

// DBToVolume maps decibels to linear volume; -Inf maps to 0.
func DBToVolume(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	return math.Pow(10, db/20)
}

// WireVolume encodes a linear volume as hundredths of a dB for the wire.
// Silence encodes as the most negative representable value.
func WireVolume(v float64) int16 {
	db := VolumeToDB(v)
	if math.IsInf(db, -1) {
		return math.MinInt16
	}
	cents := math.Round(db * 100)
	if cents > math.MaxInt16 {
		cents = math.MaxInt16
	} else if cents < math.MinInt16 {
		cents = math.MinInt16
	}
	return int16(cents)
}

// VolumeFromWire decodes hundredths of a dB into linear volume.
func VolumeFromWire(cents int16) float64 {
	if cents == math.MinInt16 {
		return 0
	}
	return DBToVolume(float64(cents) / 100)
}

// WirePan encodes pan [-1, 1] into the signed byte the wire carries.
func WirePan(pan float64) int8 {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	v := math.Round(pan * 127)
	return int8(v)
}

// PanFromWire decodes a wire pan byte into [-1, 1].
func PanFromWire(b int8) float64 {
	v := float64(b) / 127
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	return v
}

// Peak returns the largest absolute sample in buf.
func Peak(buf []float32) float32 {
	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
