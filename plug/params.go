package plug

import (
	"fmt"
	"math"

	"github.com/lixenwraith/jamplug/audio"
	"github.com/lixenwraith/jamplug/parameter"
)

// Host parameter IDs. Fixed for the lifetime of the plugin; hosts
// persist automation against them.
const (
	ParamMasterVolume    uint32 = 0
	ParamMasterMute      uint32 = 1
	ParamMetronomeVolume uint32 = 2
	ParamMetronomeMute   uint32 = 3

	ParamCount = 4
)

// ParamInfo describes one host parameter for descriptor queries
type ParamInfo struct {
	ID      uint32
	Name    string
	Min     float64
	Max     float64
	Default float64
	Stepped bool
}

// Params returns the static parameter descriptor table
func Params() []ParamInfo {
	return []ParamInfo{
		{ID: ParamMasterVolume, Name: "Master Volume",
			Min: parameter.MinVolume, Max: parameter.MaxVolume,
			Default: parameter.DefaultMasterVolume},
		{ID: ParamMasterMute, Name: "Master Mute", Max: 1, Stepped: true},
		{ID: ParamMetronomeVolume, Name: "Metronome Volume",
			Min: parameter.MinVolume, Max: parameter.MaxVolume,
			Default: parameter.DefaultMetronomeVolume},
		{ID: ParamMetronomeMute, Name: "Metronome Mute", Max: 1, Stepped: true},
	}
}

// ParamEvent is one timestamped parameter change inside a process block
type ParamEvent struct {
	ID    uint32
	Value float64
	Frame int
}

// SetParam applies a parameter value immediately: once to the plugin's
// readback atomic, once to the engine's audio-read atomic
func (p *Instance) SetParam(id uint32, value float64) {
	switch id {
	case ParamMasterVolume:
		v := audio.ClampVolume(value)
		p.paramMasterVolume.Set(v)
		p.client.SetMasterVolume(v)
	case ParamMasterMute:
		on := value >= 0.5
		p.paramMasterMute.Store(on)
		p.client.SetMasterMute(on)
	case ParamMetronomeVolume:
		v := audio.ClampVolume(value)
		p.paramMetronomeVolume.Set(v)
		p.client.Metronome().SetVolume(v)
	case ParamMetronomeMute:
		on := value >= 0.5
		p.paramMetronomeMute.Store(on)
		p.client.Metronome().SetMute(on)
	}
}

// GetParam returns the current value of a parameter, or 0 for unknown IDs
func (p *Instance) GetParam(id uint32) float64 {
	switch id {
	case ParamMasterVolume:
		return p.paramMasterVolume.Get()
	case ParamMasterMute:
		return boolValue(p.paramMasterMute.Load())
	case ParamMetronomeVolume:
		return p.paramMetronomeVolume.Get()
	case ParamMetronomeMute:
		return boolValue(p.paramMetronomeMute.Load())
	}
	return 0
}

// FormatParam renders a value for host display: volumes in dB, mutes as
// on/off
func FormatParam(id uint32, value float64) string {
	switch id {
	case ParamMasterVolume, ParamMetronomeVolume:
		db := audio.VolumeToDB(value)
		if math.IsInf(db, -1) {
			return "-inf dB"
		}
		return fmt.Sprintf("%.1f dB", db)
	case ParamMasterMute, ParamMetronomeMute:
		if value >= 0.5 {
			return "on"
		}
		return "off"
	}
	return fmt.Sprintf("%g", value)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
