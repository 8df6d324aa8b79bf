package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishad/runsheet/internal/errors"
)

func TestReadSuffix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Mmus_C57-6J_LVR_FLT_Rep1_M25_R1_raw.fastq.gz", "_R1_raw.fastq.gz"},
		{"Mmus_C57-6J_LVR_FLT_Rep1_M25_R2_raw.fastq.gz", "_R2_raw.fastq.gz"},
		{"sample_R2_001.fq", "_R2_001.fq"},
		{"sample.R1.trimmed.fastq", ".R1.trimmed.fastq"},
		{"sample-r1-trimmed.fq", "-r1-trimmed.fq"},
		{"sample_raw.fastq.gz", "_raw.fastq.gz"},
		{"sample_R1_HRremoved_raw.fastq.gz", "_R1_HRremoved_raw.fastq.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadSuffix(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadSuffixErrors(t *testing.T) {
	for _, name := range []string{
		"sample_R1_L001-R1-raw.fastq.gz", // _R1_ and -R1- both match
		"sample.bam",
		"sample_R1_raw.txt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSuffix(name)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindSuffix))
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestIsSecondRead(t *testing.T) {
	assert.True(t, IsSecondRead("x_R2_raw.fastq.gz"))
	assert.True(t, IsSecondRead("x.r2.fq"))
	assert.True(t, IsSecondRead("x_2.fastq"))
	assert.False(t, IsSecondRead("x_R1_raw.fastq.gz"))
	assert.False(t, IsSecondRead("R2D2_R1.fq"))
}
