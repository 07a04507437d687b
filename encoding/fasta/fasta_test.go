package fasta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFasta = `>seq1 test sequence
GGGAAA
UCCC
>seq2
ACGU
`

func TestRead(t *testing.T) {
	recs, err := Read(strings.NewReader(testFasta))
	require.NoError(t, err)
	require.Equal(t, 2, len(recs))
	assert.Equal(t, Record{Name: "seq1", Desc: "test sequence", Seq: "GGGAAAUCCC"}, recs[0])
	assert.Equal(t, Record{Name: "seq2", Seq: "ACGU"}, recs[1])
}

func TestReadErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"ACGU\n",
		"> no name\nACGU\n",
	} {
		_, err := Read(strings.NewReader(in))
		assert.Error(t, err, "input: %q", in)
	}
}

func TestReadAlignment(t *testing.T) {
	recs, err := ReadAlignment(strings.NewReader(">a\nGG-AA\n>b\nGGCAA\n"))
	require.NoError(t, err)
	assert.Equal(t, "GG-AA", recs[0].Seq)
	assert.Equal(t, "GGCAA", recs[1].Seq)

	_, err = ReadAlignment(strings.NewReader(">a\nGG-AA\n>b\nGG\n"))
	assert.Error(t, err)
}
