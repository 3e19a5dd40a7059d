package fresh

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/liteflow/internal/model"
)

type fakeFS map[string]time.Time

func (f fakeFS) Stat(path string) (Info, error) {
	mtime, ok := f[path]
	return Info{Exists: ok, ModTime: mtime}, nil
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return epoch.Add(d) }

func job(inputs, outputs []string) *model.Job {
	return &model.Job{ID: "j", Inputs: inputs, Outputs: outputs}
}

func TestIsFresh(t *testing.T) {
	tests := []struct {
		name string
		fs   fakeFS
		job  *model.Job
		want bool
	}{
		{
			name: "outputs newer than inputs",
			fs:   fakeFS{"in.txt": at(0), "out.txt": at(time.Hour)},
			job:  job([]string{"in.txt"}, []string{"out.txt"}),
			want: true,
		},
		{
			name: "output missing",
			fs:   fakeFS{"in.txt": at(0)},
			job:  job([]string{"in.txt"}, []string{"out.txt"}),
			want: false,
		},
		{
			name: "output older than input",
			fs:   fakeFS{"in.txt": at(time.Hour), "out.txt": at(0)},
			job:  job([]string{"in.txt"}, []string{"out.txt"}),
			want: false,
		},
		{
			name: "equal timestamps are fresh",
			fs:   fakeFS{"in.txt": at(0), "out.txt": at(0)},
			job:  job([]string{"in.txt"}, []string{"out.txt"}),
			want: true,
		},
		{
			name: "input missing",
			fs:   fakeFS{"out.txt": at(0)},
			job:  job([]string{"in.txt"}, []string{"out.txt"}),
			want: false,
		},
		{
			name: "oldest output governs",
			fs:   fakeFS{"in.txt": at(time.Minute), "a.out": at(time.Hour), "b.out": at(0)},
			job:  job([]string{"in.txt"}, []string{"a.out", "b.out"}),
			want: false,
		},
		{
			name: "no inputs",
			fs:   fakeFS{"out.txt": at(0)},
			job:  job(nil, []string{"out.txt"}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Oracle{FS: tt.fs}
			got, err := o.IsFresh(tt.job)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFanInManifestInvalidation(t *testing.T) {
	stateDir := t.TempDir()
	fs := fakeFS{
		"counts/s1.tsv": at(0),
		"counts/s2.tsv": at(0),
		"counts/s3.tsv": at(0),
		"matrix.tsv":    at(time.Hour),
	}
	o := &Oracle{FS: fs, StateDir: stateDir}

	agg := &model.Job{
		ID:      "matrix",
		FanIn:   true,
		Inputs:  []string{"counts/s1.tsv", "counts/s2.tsv"},
		Outputs: []string{"matrix.tsv"},
	}

	t.Run("no recorded manifest means stale", func(t *testing.T) {
		fresh, err := o.IsFresh(agg)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	require.NoError(t, o.RecordInputs(agg))

	t.Run("recorded list matches", func(t *testing.T) {
		fresh, err := o.IsFresh(agg)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("set grew: aggregate invalidated", func(t *testing.T) {
		grown := &model.Job{
			ID:      "matrix",
			FanIn:   true,
			Inputs:  []string{"counts/s1.tsv", "counts/s2.tsv", "counts/s3.tsv"},
			Outputs: []string{"matrix.tsv"},
		}
		fresh, err := o.IsFresh(grown)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("set shrank: aggregate invalidated", func(t *testing.T) {
		shrunk := &model.Job{
			ID:      "matrix",
			FanIn:   true,
			Inputs:  []string{"counts/s1.tsv"},
			Outputs: []string{"matrix.tsv"},
		}
		fresh, err := o.IsFresh(shrunk)
		require.NoError(t, err)
		assert.False(t, fresh)
	})
}

func TestDirStatFS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.txt"), []byte("x"), 0644))

	fs := Dir(dir)

	info, err := fs.Stat("present.txt")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.False(t, info.ModTime.IsZero())

	info, err = fs.Stat("absent.txt")
	require.NoError(t, err)
	assert.False(t, info.Exists)
}
