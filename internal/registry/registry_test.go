package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/liteflow/internal/model"
	"github.com/sourceplane/liteflow/internal/pattern"
)

func rule(name string, outputs ...string) *model.Rule {
	r := &model.Rule{Name: name}
	for _, out := range outputs {
		r.Outputs = append(r.Outputs, pattern.MustParse(out))
	}
	return r
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]*model.Rule{rule("a", "a.out"), rule("a", "b.out")})
	assert.ErrorContains(t, err, "duplicate rule name")
}

func TestFindProducer(t *testing.T) {
	reg, err := New([]*model.Rule{
		rule("genes", "genes/{sample}.gff"),
		rule("counts", "counts/{sample}.tsv"),
		rule("matrix", "matrix.tsv"),
	})
	require.NoError(t, err)

	t.Run("unique match extracts binding", func(t *testing.T) {
		r, b, err := reg.FindProducer("counts/s1.tsv")
		require.NoError(t, err)
		assert.Equal(t, "counts", r.Name)
		assert.Equal(t, pattern.Binding{"sample": "s1"}, b)
	})

	t.Run("literal output", func(t *testing.T) {
		r, b, err := reg.FindProducer("matrix.tsv")
		require.NoError(t, err)
		assert.Equal(t, "matrix", r.Name)
		assert.Empty(t, b)
	})

	t.Run("no producer", func(t *testing.T) {
		_, _, err := reg.FindProducer("reads/s1.fastq")
		assert.ErrorIs(t, err, ErrNoProducer)
	})
}

func TestFindProducerAmbiguous(t *testing.T) {
	reg, err := New([]*model.Rule{
		rule("wide", "{dir}/{name}.tsv"),
		rule("counts", "counts/{sample}.tsv"),
	})
	require.NoError(t, err)

	_, _, err = reg.FindProducer("counts/s1.tsv")
	var ambiguous *AmbiguousProducerError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "counts/s1.tsv", ambiguous.Path)
	assert.Equal(t, []string{"counts", "wide"}, ambiguous.Rules)
}

func TestFindProducerMultiOutputRule(t *testing.T) {
	r := &model.Rule{
		Name: "split",
		Outputs: []pattern.Pattern{
			pattern.MustParse("{sample}.header"),
			pattern.MustParse("{sample}.body"),
		},
	}
	reg, err := New([]*model.Rule{r})
	require.NoError(t, err)

	// both outputs of one rule matching is not ambiguous
	got, b, err := reg.FindProducer("s1.body")
	require.NoError(t, err)
	assert.Equal(t, "split", got.Name)
	assert.Equal(t, pattern.Binding{"sample": "s1"}, b)
}
