package fresh

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourceplane/liteflow/internal/model"
)

// Info is what the engine knows about a path: presence and a modification
// marker. The engine never reads file contents.
type Info struct {
	Exists  bool
	ModTime time.Time
}

// StatFS is the existence+timestamp oracle over the external store that
// holds sources and outputs.
type StatFS interface {
	Stat(path string) (Info, error)
}

type osFS struct {
	root string
}

// Dir returns a StatFS over the local filesystem, resolving relative
// paths against root.
func Dir(root string) StatFS { return osFS{root: root} }

func (fs osFS) Stat(path string) (Info, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(fs.root, path)
	}
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}
	return Info{Exists: true, ModTime: st.ModTime()}, nil
}

// Oracle decides whether a job's outputs are already up to date. The
// recursive part of the freshness contract (an upstream job that actually
// re-ran poisons downstream skips regardless of timestamps) is enforced by
// the scheduler, which only consults the oracle once every producer of the
// job was itself skipped.
type Oracle struct {
	FS StatFS
	// StateDir holds recorded input manifests for fan-in jobs, so that a
	// change in an enumerated set invalidates the aggregate even when
	// timestamps alone would allow a skip. Empty disables manifests.
	StateDir string
}

// IsFresh reports whether the job may be skipped: every output present,
// no output older than any input, and (for fan-in jobs) the resolved
// input list unchanged since the outputs were produced.
func (o *Oracle) IsFresh(job *model.Job) (bool, error) {
	var oldestOutput time.Time
	for i, out := range job.Outputs {
		info, err := o.FS.Stat(out)
		if err != nil {
			return false, fmt.Errorf("stat output %s: %w", out, err)
		}
		if !info.Exists {
			return false, nil
		}
		if i == 0 || info.ModTime.Before(oldestOutput) {
			oldestOutput = info.ModTime
		}
	}

	for _, in := range job.Inputs {
		info, err := o.FS.Stat(in)
		if err != nil {
			return false, fmt.Errorf("stat input %s: %w", in, err)
		}
		if !info.Exists || info.ModTime.After(oldestOutput) {
			return false, nil
		}
	}

	if job.FanIn && o.StateDir != "" {
		recorded, err := os.ReadFile(o.manifestPath(job))
		if err != nil || string(recorded) != manifestBody(job) {
			return false, nil
		}
	}

	return true, nil
}

// RecordInputs persists the resolved input list of a fan-in job after it
// succeeds (or is confirmed fresh), keyed by its primary output.
func (o *Oracle) RecordInputs(job *model.Job) error {
	if !job.FanIn || o.StateDir == "" {
		return nil
	}
	path := o.manifestPath(job)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(manifestBody(job)), 0644); err != nil {
		return fmt.Errorf("record inputs for %s: %w", job.ID, err)
	}
	return nil
}

func (o *Oracle) manifestPath(job *model.Job) string {
	sum := sha1.Sum([]byte(job.Outputs[0]))
	return filepath.Join(o.StateDir, "inputs", hex.EncodeToString(sum[:]))
}

func manifestBody(job *model.Job) string {
	return strings.Join(job.Inputs, "\n") + "\n"
}
