// jamcli is a terminal host for the jam plugin core: it wires the
// instance's process callback to the system speaker and renders session
// state in a tcell UI. Input is a built-in test tone (no capture
// device), which is enough to jam the metronome and hear peers.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/jamplug/audio"
	"github.com/lixenwraith/jamplug/event"
	"github.com/lixenwraith/jamplug/plug"
)

const (
	sampleRate = 48000
	maxBlock   = 2048
	chatLines  = 8
)

type App struct {
	screen tcell.Screen
	plug   *plug.Instance

	width, height int

	server, user, pass string
	statePath          string

	topic  string
	status string
	chat   []string

	toneOn atomic.Bool

	// Audio-callback scratch, allocated once
	inL, inR   []float32
	outL, outR []float32
	phase      float64
}

func main() {
	server := flag.String("server", "", "server host:port")
	user := flag.String("user", "jammer", "username")
	pass := flag.String("pass", "", "password")
	statePath := flag.String("state", "", "settings file to load and save")
	logPath := flag.String("log", "", "debug log file")
	flag.Parse()

	logger := slog.New(slog.DiscardHandler)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	app := &App{
		plug:      plug.New(plug.Options{Log: logger}),
		server:    *server,
		user:      *user,
		pass:      *pass,
		statePath: *statePath,
		inL:       make([]float32, maxBlock),
		inR:       make([]float32, maxBlock),
		outL:      make([]float32, maxBlock),
		outR:      make([]float32, maxBlock),
	}

	if err := app.run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *App) run() error {
	if err := a.plug.Activate(sampleRate, maxBlock); err != nil {
		return err
	}
	defer a.plug.Deactivate()

	if a.statePath != "" {
		if f, err := os.Open(a.statePath); err == nil {
			if err := a.plug.LoadState(f); err != nil {
				a.pushChat(fmt.Sprintf("settings load failed: %v", err))
			}
			f.Close()
			if s, u := a.plug.ServerAndUser(); a.server == "" && s != "" {
				a.server, a.user = s, u
			}
		}
	}

	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(50*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(beep.StreamerFunc(a.stream))

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	a.screen = screen
	defer screen.Fini()
	a.width, a.height = screen.Size()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case *tcell.EventResize:
				a.width, a.height = screen.Size()
				screen.Sync()
			case *tcell.EventKey:
				if !a.handleKey(e) {
					return a.saveState()
				}
			}
		case <-ticker.C:
			a.drainPlugEvents()
			a.draw()
		}
	}
}

func (a *App) handleKey(e *tcell.EventKey) bool {
	if a.plug.License().Pending() {
		switch e.Rune() {
		case 'y', 'Y':
			a.plug.License().Respond(true)
		case 'n', 'N':
			a.plug.License().Respond(false)
		}
		return true
	}

	switch {
	case e.Key() == tcell.KeyEscape || e.Rune() == 'q':
		return false
	case e.Rune() == 'c':
		if a.server == "" {
			a.pushChat("no server configured (use -server)")
			break
		}
		if err := a.plug.Connect(a.server, a.user, a.pass); err != nil {
			a.pushChat(fmt.Sprintf("connect: %v", err))
		}
	case e.Rune() == 'd':
		a.plug.Disconnect()
	case e.Rune() == 'm':
		a.toggle(plug.ParamMasterMute)
	case e.Rune() == 'n':
		a.toggle(plug.ParamMetronomeMute)
	case e.Rune() == '+', e.Rune() == '=':
		a.plug.SetParam(plug.ParamMasterVolume, a.plug.GetParam(plug.ParamMasterVolume)+0.05)
	case e.Rune() == '-':
		a.plug.SetParam(plug.ParamMasterVolume, a.plug.GetParam(plug.ParamMasterVolume)-0.05)
	case e.Rune() == 't':
		a.toneOn.Store(!a.toneOn.Load())
	}
	return true
}

func (a *App) toggle(id uint32) {
	if a.plug.GetParam(id) >= 0.5 {
		a.plug.SetParam(id, 0)
	} else {
		a.plug.SetParam(id, 1)
	}
}

// stream is the speaker's pull callback: synthesize input, run the
// plugin's process path, hand the mix to the output device
func (a *App) stream(samples [][2]float64) (int, bool) {
	done := 0
	for done < len(samples) {
		n := len(samples) - done
		if n > maxBlock {
			n = maxBlock
		}

		if a.toneOn.Load() {
			for i := 0; i < n; i++ {
				s := float32(0.4 * math.Sin(a.phase))
				a.phase += 2 * math.Pi * 220 / sampleRate
				a.inL[i] = s
				a.inR[i] = s
			}
		} else {
			for i := 0; i < n; i++ {
				a.inL[i] = 0
				a.inR[i] = 0
			}
		}

		a.plug.Process(a.inL[:n], a.inR[:n], a.outL[:n], a.outR[:n], nil)
		for i := 0; i < n; i++ {
			samples[done+i][0] = float64(a.outL[i])
			samples[done+i][1] = float64(a.outR[i])
		}
		done += n
	}
	return len(samples), true
}

func (a *App) drainPlugEvents() {
	a.plug.DrainEvents(func(ev event.UIEvent) {
		switch ev.Type {
		case event.TypeStatusChanged:
			a.status = ev.State.String()
			if ev.Err != "" {
				a.status += ": " + ev.Err
			}
		case event.TypeTopicChanged:
			a.topic = ev.Text
		case event.TypeChatMessage:
			a.pushChat(fmt.Sprintf("<%s> %s", ev.User, ev.Text))
		case event.TypeCapacityWarning:
			a.pushChat(fmt.Sprintf("cannot subscribe %s/%s: out of playback slots", ev.User, ev.Text))
		}
	})
}

func (a *App) pushChat(line string) {
	a.chat = append(a.chat, line)
	if len(a.chat) > chatLines {
		a.chat = a.chat[len(a.chat)-chatLines:]
	}
}

func (a *App) draw() {
	s := a.screen
	s.Clear()

	snap := a.plug.Snapshot()
	bpm := snap.BPM.Get()
	bpi := snap.BPI.Load()
	beat := snap.BeatPosition.Load()

	head := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	a.text(0, 0, head, fmt.Sprintf("jamcli  %s  [%s]", a.server, a.status))
	if bpm > 0 {
		a.text(0, 1, tcell.StyleDefault,
			fmt.Sprintf("tempo %.0f bpm / %d bpi   beat %d", bpm, bpi, beat+1))
	}
	if a.topic != "" {
		a.text(0, 2, tcell.StyleDefault.Foreground(tcell.ColorTeal), "topic: "+a.topic)
	}

	l, r := snap.MasterVU.Get()
	a.meter(0, 3, "master", l, r)

	row := 5
	for _, u := range a.plug.Engine().Users() {
		a.text(0, row, tcell.StyleDefault.Bold(true), u.Name)
		row++
		for _, ch := range u.Channels {
			mark := " "
			if ch.Subscribed {
				mark = "*"
			}
			a.text(2, row, tcell.StyleDefault, fmt.Sprintf("%s %-12s", mark, ch.Name))
			a.meter(18, row, "", ch.PeakL, ch.PeakR)
			row++
		}
	}

	base := a.height - chatLines - 1
	for i, line := range a.chat {
		a.text(0, base+i, tcell.StyleDefault.Dim(true), line)
	}

	if a.plug.License().Pending() {
		a.drawLicense()
	} else {
		a.text(0, a.height-1, tcell.StyleDefault.Dim(true),
			"c connect  d disconnect  t tone  m/n mute  +/- volume  q quit")
	}
	s.Show()
}

func (a *App) drawLicense() {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkBlue)
	y := a.height / 3
	a.text(2, y, style, " server license agreement ")
	text := a.plug.License().Text()
	for len(text) > 0 && y < a.height-3 {
		y++
		n := a.width - 4
		if n > len(text) {
			n = len(text)
		}
		a.text(2, y, style, text[:n])
		text = text[n:]
	}
	a.text(2, y+1, style, " accept? y/n ")
}

// meter draws a pair of dB-scaled peak bars
func (a *App) meter(x, y int, label string, l, r float32) {
	const width = 20
	if label != "" {
		a.text(x, y, tcell.StyleDefault, label)
		x += len(label) + 1
	}
	bar := func(p float32) string {
		db := audio.VolumeToDB(float64(p))
		n := 0
		if db > -60 {
			n = int((db + 60) / 60 * width)
		}
		if n > width {
			n = width
		}
		out := make([]rune, width)
		for i := range out {
			if i < n {
				out[i] = '|'
			} else {
				out[i] = '.'
			}
		}
		return string(out)
	}
	a.text(x, y, tcell.StyleDefault.Foreground(tcell.ColorGreen), bar(l)+" "+bar(r))
}

func (a *App) text(x, y int, style tcell.Style, str string) {
	for i, ch := range str {
		if x+i >= a.width {
			return
		}
		a.screen.SetContent(x+i, y, ch, nil, style)
	}
}

func (a *App) saveState() error {
	if a.statePath == "" {
		return nil
	}
	f, err := os.Create(a.statePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.plug.SaveState(f)
}
