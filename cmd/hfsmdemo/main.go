// Command hfsmdemo runs a guard dog AI in the terminal. The dog's behavior
// is a hierarchical state machine loaded from YAML and ticked ~60 times a
// second; keys send it events.
package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/librescoot/hfsm"
	"github.com/librescoot/hfsm/config"
	"github.com/librescoot/hfsm/runner"
)

//go:embed dog.yaml
var dogYAML []byte

const (
	chaseDuration = 4 * time.Second
	sniffMin      = 500 * time.Millisecond
	maxLogLines   = 8
)

// Dog is the application data shared by all callbacks
type Dog struct {
	X       int
	Dir     int
	Barks   int
	Sniffs  int
	Events  []string
	Started time.Time
}

func (d *Dog) note(format string, args ...any) {
	line := fmt.Sprintf("%5.1fs  ", time.Since(d.Started).Seconds()) + fmt.Sprintf(format, args...)
	d.Events = append(d.Events, line)
	if len(d.Events) > maxLogLines {
		d.Events = d.Events[len(d.Events)-maxLogLines:]
	}
}

func registry() *config.Registry {
	dog := func(c *config.Context) *Dog { return c.Data.(*Dog) }
	winded := func(c *config.Context) bool { return c.Elapsed() >= chaseDuration }

	return config.NewRegistry().
		RegisterAction("announce", func(c *config.Context) error {
			dog(c).note("-> %s", c.State.Name())
			return nil
		}).
		RegisterAction("wander", func(c *config.Context) error {
			d := dog(c)
			if d.Dir == 0 {
				d.Dir = 1
			}
			d.X += d.Dir
			if d.X <= 0 || d.X >= 40 {
				d.Dir = -d.Dir
			}
			return nil
		}).
		RegisterAction("run", func(c *config.Context) error {
			d := dog(c)
			d.X += 2 * d.Dir
			if d.X <= 0 || d.X >= 40 {
				d.Dir = -d.Dir
			}
			return nil
		}).
		RegisterAction("rest_when_winded", func(c *config.Context) error {
			if _, pending := c.FSM.PendingState(); pending && winded(c) {
				dog(c).note("winded, giving up the chase")
				return c.StateCanExit()
			}
			return nil
		}).
		RegisterAction("bark", func(c *config.Context) error {
			d := dog(c)
			d.Barks++
			d.note("WOOF (%v)", c.Payload)
			return nil
		}).
		RegisterAction("count_sniff", func(c *config.Context) error {
			dog(c).Sniffs++
			return nil
		}).
		RegisterGuard("winded", winded).
		// Evaluated every tick while sniffing, so it must not change the dog
		RegisterDelay("sniff_time", func(c *config.Context) time.Duration {
			return sniffMin * time.Duration(1+dog(c).Sniffs%3)
		})
}

// audio plays short cues; every method is a no-op when init failed
type audio struct {
	rate beep.SampleRate
	ok   bool
}

func newAudio() *audio {
	a := &audio{rate: beep.SampleRate(44100)}
	if err := speaker.Init(a.rate, a.rate.N(time.Second/10)); err != nil {
		// Non-fatal, the demo can run without sound
		slog.Warn("audio initialization failed", "error", err)
		return a
	}
	a.ok = true
	return a
}

func (a *audio) tone(freq float64) {
	if !a.ok {
		return
	}
	sine, err := generators.SineTone(a.rate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(a.rate.N(60*time.Millisecond), sine))
}

func (a *audio) close() {
	if a.ok {
		speaker.Close()
	}
}

var stateTones = map[string]float64{
	"patrol": 440,
	"chase":  880,
	"sleep":  220,
}

func draw(screen tcell.Screen, m *config.Machine, dog *Dog) {
	screen.Clear()
	put := func(x, y int, s string, style tcell.Style) {
		for i, r := range s {
			screen.SetContent(x+i, y, r, nil, style)
		}
	}

	title := tcell.StyleDefault.Bold(true)
	put(0, 0, "hfsm guard dog  [n]oise  [b]ark  [s]leep  [w]ake  [q]uit", title)

	path := m.ActiveHierarchyPath()
	style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	if len(path) > 0 && path[0] == "chase" {
		style = tcell.StyleDefault.Foreground(tcell.ColorRed)
	}
	put(0, 2, "state:  "+strings.Join(path, " / "), style)
	if pending, ok := m.PendingState(); ok {
		put(0, 3, "pending: "+pending, tcell.StyleDefault.Foreground(tcell.ColorYellow))
	}
	put(0, 4, fmt.Sprintf("barks: %d", dog.Barks), tcell.StyleDefault)

	put(0, 6, strings.Repeat(".", 42), tcell.StyleDefault.Foreground(tcell.ColorGray))
	screen.SetContent(dog.X, 6, 'D', nil, style.Bold(true))

	for i, line := range dog.Events {
		put(0, 8+i, line, tcell.StyleDefault)
	}
	screen.Show()
}

func run() error {
	configPath := flag.String("config", "", "machine definition (defaults to the embedded guard dog)")
	dump := flag.Bool("dump", false, "print the machine definition and exit")
	logPath := flag.String("log", "", "write debug logs to this file")
	fps := flag.Int("fps", 60, "logic ticks per second")
	flag.Parse()

	var (
		def *config.Definition
		err error
	)
	if *configPath != "" {
		def, err = config.LoadFile(*configPath)
	} else {
		def, err = config.Parse(dogYAML)
	}
	if err != nil {
		return err
	}

	if *dump {
		out, err := def.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	dog := &Dog{X: 20, Dir: 1, Started: time.Now()}
	m, err := config.Build(def, registry(),
		config.WithData(dog),
		config.WithMachineOptions(hfsm.WithLogger(logger)),
	)
	if err != nil {
		return err
	}

	sound := newAudio()
	defer sound.close()
	m.OnStateChange(func(from, to string) {
		sound.tone(stateTones[to])
	})

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	interval := time.Second / time.Duration(max(*fps, 1))
	r := runner.New[string](m,
		runner.WithInterval(interval),
		runner.WithLogger(logger),
		runner.WithAfterTick(func() { draw(screen, m, dog) }),
	)
	if err := r.Start(context.Background()); err != nil {
		return err
	}

	keys := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			keys <- ev
		}
	}()

	for {
		select {
		case <-r.Done():
			return r.Err()
		case ev := <-keys:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return r.Stop()
				}
				switch ev.Rune() {
				case 'n':
					r.Send("noise")
				case 'b':
					r.SendAction("bark", "at the mailman")
				case 's':
					r.Send("night")
				case 'w':
					r.Send("wake")
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hfsmdemo: %v\n", err)
		os.Exit(1)
	}
}
