package streaming

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/media"
)

// fakeProcess is a controllable encoder process
type fakeProcess struct {
	pid        int
	ignoreTerm bool

	mu      sync.Mutex
	signals []os.Signal
	killed  bool

	once sync.Once
	exit chan error
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exit: make(chan error, 1)}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() error { return <-p.exit }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.ignoreTerm
	p.mu.Unlock()
	if !ignore {
		p.finish(errors.New("signal: terminated"))
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(errors.New("signal: killed"))
	return nil
}

// finish makes Wait return err
func (p *fakeProcess) finish(err error) {
	p.once.Do(func() { p.exit <- err })
}

func (p *fakeProcess) signalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// fakeLauncher records launches and hands out fake processes
type fakeLauncher struct {
	mu         sync.Mutex
	err        error
	ignoreTerm bool
	launches   [][]string
	procs      []*fakeProcess
	outputs    []func(string)
}

func (l *fakeLauncher) Launch(_ context.Context, args []string, onOutput func(string)) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches = append(l.launches, args)
	if l.err != nil {
		return nil, l.err
	}
	proc := newFakeProcess(1000 + len(l.procs))
	proc.ignoreTerm = l.ignoreTerm
	l.procs = append(l.procs, proc)
	l.outputs = append(l.outputs, onOutput)
	return proc, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func (l *fakeLauncher) last() ([]string, *fakeProcess, func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var proc *fakeProcess
	var out func(string)
	if len(l.procs) > 0 {
		proc = l.procs[len(l.procs)-1]
		out = l.outputs[len(l.outputs)-1]
	}
	return l.launches[len(l.launches)-1], proc, out
}

func (l *fakeLauncher) allProcs() []*fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProcess(nil), l.procs...)
}

// fakeProber returns a fixed result
type fakeProber struct {
	mu     sync.Mutex
	result media.ProbeResult
	paths  []string
}

func (p *fakeProber) Inspect(_ context.Context, path string) media.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	return p.result
}

func (p *fakeProber) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
