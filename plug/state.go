package plug

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// settingsVersion marks the persisted document layout
const settingsVersion = 1

// settings is the persisted state document. The password never appears
// here; it lives only in the handshake.
type settings struct {
	Version  int    `json:"version"`
	Server   string `json:"server,omitempty"`
	Username string `json:"username,omitempty"`
	Master   struct {
		Volume float64 `json:"volume"`
		Mute   bool    `json:"mute"`
	} `json:"master"`
	Metronome struct {
		Volume float64 `json:"volume"`
		Mute   bool    `json:"mute"`
	} `json:"metronome"`
	LocalChannel struct {
		Name     string `json:"name"`
		Transmit bool   `json:"transmit"`
		Bitrate  int    `json:"bitrate"`
	} `json:"localChannel"`
}

// SaveState writes the persisted document. Fields are snapshotted under
// the instance lock; the write itself happens outside any lock and
// loops over short writes.
func (p *Instance) SaveState(w io.Writer) error {
	var s settings
	s.Version = settingsVersion

	p.mu.Lock()
	s.Server = p.server
	s.Username = p.username
	p.mu.Unlock()

	s.Master.Volume = p.paramMasterVolume.Get()
	s.Master.Mute = p.paramMasterMute.Load()
	s.Metronome.Volume = p.paramMetronomeVolume.Get()
	s.Metronome.Mute = p.paramMetronomeMute.Load()
	s.LocalChannel.Name, s.LocalChannel.Transmit, s.LocalChannel.Bitrate = p.client.LocalChannelInfo()

	buf, err := json.Marshal(&s)
	if err != nil {
		return err
	}
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// LoadState applies a persisted document. Unknown fields and older
// versions are tolerated; absent fields keep their current values.
func (p *Instance) LoadState(r io.Reader) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(buf) {
		return fmt.Errorf("malformed settings document")
	}
	doc := gjson.ParseBytes(buf)

	if v := doc.Get("version"); v.Exists() && v.Int() > settingsVersion {
		return fmt.Errorf("settings version %d is newer than supported %d", v.Int(), settingsVersion)
	}

	p.mu.Lock()
	if v := doc.Get("server"); v.Exists() {
		p.server = v.String()
	}
	if v := doc.Get("username"); v.Exists() {
		p.username = v.String()
	}
	p.mu.Unlock()

	if v := doc.Get("master.volume"); v.Exists() {
		p.SetParam(ParamMasterVolume, v.Float())
	}
	if v := doc.Get("master.mute"); v.Exists() {
		p.SetParam(ParamMasterMute, boolValue(v.Bool()))
	}
	if v := doc.Get("metronome.volume"); v.Exists() {
		p.SetParam(ParamMetronomeVolume, v.Float())
	}
	if v := doc.Get("metronome.mute"); v.Exists() {
		p.SetParam(ParamMetronomeMute, boolValue(v.Bool()))
	}

	name, transmit, bitrate := p.client.LocalChannelInfo()
	if v := doc.Get("localChannel.name"); v.Exists() {
		name = v.String()
	}
	if v := doc.Get("localChannel.transmit"); v.Exists() {
		transmit = v.Bool()
	}
	if v := doc.Get("localChannel.bitrate"); v.Exists() {
		bitrate = int(v.Int())
	}
	return p.client.SetLocalChannelInfo(name, transmit, bitrate)
}

// ServerAndUser returns the persisted connection identity
func (p *Instance) ServerAndUser() (server, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.server, p.username
}
