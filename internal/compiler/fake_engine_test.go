package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fakeEngine simulates a container engine. A started container "runs" the
// behaviour function against its bind mounts when waited on.
type fakeEngine struct {
	mu sync.Mutex

	images     map[string]bool
	pulls      int
	nextID     int
	live       map[string]ContainerSpec
	names      map[string]string
	created    []ContainerSpec
	removeReqs []string
	listed     []ContainerInfo

	createErr error
	startErr  error
	removeErr error
	pullErr   error

	running    int
	maxRunning int

	// behaviour runs when the container is waited on; nil blocks until ctx is done
	behaviour func(inDir, outDir string) int64
}

func newFakeEngine(image string) *fakeEngine {
	return &fakeEngine{
		images: map[string]bool{image: true},
		live:   map[string]ContainerSpec{},
		names:  map[string]string{},
	}
}

func (f *fakeEngine) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *fakeEngine) PullImage(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	if f.pullErr != nil {
		return f.pullErr
	}
	f.images[ref] = true
	return nil
}

func (f *fakeEngine) CreateContainer(_ context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, spec)
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("c%04d", f.nextID)
	f.live[id] = spec
	f.names[spec.Name] = id
	return id, nil
}

func (f *fakeEngine) StartContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if _, ok := f.live[id]; !ok {
		return fmt.Errorf("no such container %s", id)
	}
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	return nil
}

func (f *fakeEngine) WaitContainer(ctx context.Context, id string) (int64, error) {
	f.mu.Lock()
	spec := f.live[id]
	behaviour := f.behaviour
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if behaviour == nil {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	var inDir, outDir string
	for _, m := range spec.Mounts {
		switch m.Target {
		case InputDir:
			inDir = m.Source
		case OutputDir:
			outDir = m.Source
		}
	}
	return behaviour(inDir, outDir), nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeReqs = append(f.removeReqs, id)
	if f.removeErr != nil {
		return f.removeErr
	}
	if byName, ok := f.names[id]; ok {
		id = byName
	}
	if spec, ok := f.live[id]; ok {
		delete(f.names, spec.Name)
		delete(f.live, id)
	}
	return nil
}

func (f *fakeEngine) ListContainers(_ context.Context, labels map[string]string) ([]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ContainerInfo
	for _, info := range f.listed {
		match := true
		for k, v := range labels {
			if info.Labels[k] != v {
				match = false
			}
		}
		if match {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakeEngine) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// writePDF is a behaviour that produces a small PDF and a clean log
func writePDF(inDir, outDir string) int64 {
	if _, err := os.Stat(filepath.Join(inDir, SourceName)); err != nil {
		return 2
	}
	_ = os.WriteFile(filepath.Join(outDir, "main.log"), []byte("Output written on main.pdf (1 page)."), 0o644)
	_ = os.WriteFile(filepath.Join(outDir, "main.pdf"), []byte("%PDF-1.5\nfake\n%%EOF\n"), 0o644)
	return 0
}

// failWithLog is a behaviour that mimics a LaTeX error
func failWithLog(_, outDir string) int64 {
	_ = os.WriteFile(filepath.Join(outDir, "main.log"), []byte("! Undefined control sequence.\nl.3 \\foo\n"), 0o644)
	return 1
}

// slow wraps a behaviour with a delay
func slow(d time.Duration, next func(string, string) int64) func(string, string) int64 {
	return func(in, out string) int64 {
		time.Sleep(d)
		return next(in, out)
	}
}
