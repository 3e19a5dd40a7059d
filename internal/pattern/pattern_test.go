package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid patterns", func(t *testing.T) {
		for _, raw := range []string{
			"a.out",
			"a/{id}.x",
			"clusters/cluster_{id}.fna",
			"{dir}/{name}.txt",
			"pairs/{a}_{b}.tsv",
		} {
			p, err := Parse(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, raw, p.String())
		}
	})

	t.Run("invalid patterns", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"a/{id.x",
			"a/id}.x",
			"a/{}.x",
			"a/{a/b}.x",
		} {
			_, err := Parse(raw)
			assert.Error(t, err, raw)
		}
	})
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    Binding
	}{
		{"a/{id}.x", "a/foo.x", Binding{"id": "foo"}},
		{"clusters/cluster_{id}.fna", "clusters/cluster_42.fna", Binding{"id": "42"}},
		{"{dir}/{name}.txt", "docs/readme.txt", Binding{"dir": "docs", "name": "readme"}},
		{"counts/{sample}.tsv", "counts/s1.tsv", Binding{"sample": "s1"}},
		{"a.out", "a.out", Binding{}},
		// no match: literal mismatch, segment count mismatch, empty capture
		{"a/{id}.x", "b/foo.x", nil},
		{"a/{id}.x", "a/foo.y", nil},
		{"a/{id}.x", "a/b/foo.x", nil},
		{"a/{id}.x", "a/.x", nil},
		// a wildcard never crosses a separator
		{"{name}.txt", "docs/readme.txt", nil},
	}
	for _, tt := range tests {
		p := MustParse(tt.pattern)
		got, ok := p.Match(tt.path)
		if tt.want == nil {
			assert.False(t, ok, "%s vs %s", tt.pattern, tt.path)
			continue
		}
		require.True(t, ok, "%s vs %s", tt.pattern, tt.path)
		assert.Equal(t, tt.want, got)
	}
}

func TestMatchRepeatedWildcard(t *testing.T) {
	p := MustParse("{x}/{x}.dat")

	b, ok := p.Match("a/a.dat")
	require.True(t, ok)
	assert.Equal(t, Binding{"x": "a"}, b)

	_, ok = p.Match("a/b.dat")
	assert.False(t, ok)
}

func TestSubstitute(t *testing.T) {
	p := MustParse("clusters/cluster_{id}.fna")

	path, err := p.Substitute(Binding{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "clusters/cluster_7.fna", path)

	_, err = p.Substitute(Binding{"other": "7"})
	var unbound *UnboundWildcardError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "id", unbound.Wildcard)
}

func TestMatchSubstituteRoundTrip(t *testing.T) {
	cases := map[string]string{
		"a/{id}.x":                  "a/foo.x",
		"clusters/cluster_{id}.fna": "clusters/cluster_s1_contig9.fna",
		"{dir}/{name}.{ext}":        "out/genes.gff",
		"pairs/{a}_vs_{b}.paf":      "pairs/s1_vs_s2.paf",
	}
	for raw, path := range cases {
		p := MustParse(raw)
		b, ok := p.Match(path)
		require.True(t, ok, raw)
		got, err := p.Substitute(b)
		require.NoError(t, err, raw)
		assert.Equal(t, path, got, raw)
	}
}

func TestWildcards(t *testing.T) {
	assert.Empty(t, MustParse("a.out").Wildcards())
	assert.False(t, MustParse("a.out").HasWildcards())

	p := MustParse("{a}/{b}_{a}.txt")
	assert.True(t, p.HasWildcards())
	assert.Equal(t, []string{"a", "b"}, p.Wildcards())
}

func TestExpand(t *testing.T) {
	b := Binding{"input": "a.fastq b.fastq", "output": "out.tsv", "threads": "4"}

	got, err := Expand("tool -t {threads} {input} > {output}", b)
	require.NoError(t, err)
	assert.Equal(t, "tool -t 4 a.fastq b.fastq > out.tsv", got)

	t.Run("escaped braces pass through", func(t *testing.T) {
		got, err := Expand(`awk '{{print $1}}' {input}`, b)
		require.NoError(t, err)
		assert.Equal(t, `awk '{print $1}' a.fastq b.fastq`, got)
	})

	t.Run("unbound placeholder", func(t *testing.T) {
		_, err := Expand("tool {missing}", b)
		var unbound *UnboundWildcardError
		assert.ErrorAs(t, err, &unbound)
	})

	t.Run("unbalanced braces", func(t *testing.T) {
		_, err := Expand("tool {input", b)
		assert.Error(t, err)
		_, err = Expand("tool input}", b)
		assert.Error(t, err)
	})
}
