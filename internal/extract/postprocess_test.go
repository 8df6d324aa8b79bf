package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
)

func draft(t *testing.T, samples ...string) *frame.Frame {
	t.Helper()
	f, err := frame.New("Sample Name", samples)
	require.NoError(t, err)
	flight := frame.NewSeries(frame.String)
	dose := frame.NewSeries(frame.String)
	for i, s := range samples {
		flight.Values[s] = []string{"Space Flight", "Ground Control"}[i%2]
		dose.Values[s] = "10 Gy"
	}
	require.NoError(t, f.Set("Factor Value[Spaceflight]", flight))
	require.NoError(t, f.Set("Factor Value[Dose]", dose))
	f.SetConstant("paired_end", frame.Bool, frame.True)
	return f
}

func TestParseInjections(t *testing.T) {
	inj, err := ParseInjections([]string{"organism=Mus musculus", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, []Injection{{"organism", "Mus musculus"}, {"note", "a=b"}}, inj)

	for _, bad := range []string{"organism", "=value"} {
		_, err := ParseInjections([]string{bad})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindConfig))
	}
}

func TestPostProcessNormalizesNames(t *testing.T) {
	in := draft(t, "Mmus FLT 1", "Mmus\tGC 2")
	core, logs := observer.New(zap.InfoLevel)

	out, err := PostProcess(in, PostOptions{}, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, []string{"Mmus_FLT_1", "Mmus_GC_2"}, out.Index())
	assert.Equal(t, []string{"Mmus FLT 1", "Mmus\tGC 2"}, out.Values(OriginalSampleColumn))
	assert.Equal(t, []string{"Mmus FLT 1", "Mmus\tGC 2"}, in.Index(), "input frame is untouched")
	assert.False(t, in.Has(OriginalSampleColumn))
	assert.Equal(t, 1, logs.FilterMessage("sample names modified for processing").Len())
}

func TestPostProcessNameCollision(t *testing.T) {
	in := draft(t, "a b", "a_b")
	_, err := PostProcess(in, PostOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStructure))
}

func TestPostProcessInjections(t *testing.T) {
	in := draft(t, "S1", "S2")
	out, err := PostProcess(in, PostOptions{Injections: []Injection{
		{Column: "paired_end", Value: "false"},
		{Column: "organism", Value: "Arabidopsis thaliana"},
	}}, nil)
	require.NoError(t, err)

	kind, _ := out.Kind("paired_end")
	assert.Equal(t, frame.Bool, kind)
	assert.Equal(t, []string{frame.False, frame.False}, out.Values("paired_end"))
	assert.Equal(t, []string{"Arabidopsis thaliana", "Arabidopsis thaliana"}, out.Values("organism"))
}

func TestPostProcessDerivesGroups(t *testing.T) {
	in := draft(t, "S1", "S2")

	out, err := PostProcess(in, PostOptions{DeriveGroups: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Space Flight & 10 Gy", "Ground Control & 10 Gy"}, out.Values(GroupsColumn))

	out, err = PostProcess(in, PostOptions{DeriveGroups: true, GroupsSeparator: " | "}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Space Flight | 10 Gy", "Ground Control | 10 Gy"}, out.Values(GroupsColumn))

	out, err = PostProcess(in, PostOptions{}, nil)
	require.NoError(t, err)
	assert.False(t, out.Has(GroupsColumn))
}

func TestPostProcessInjectionOverridesGroups(t *testing.T) {
	in := draft(t, "S1", "S2")
	out, err := PostProcess(in, PostOptions{
		Injections:   []Injection{{Column: GroupsColumn, Value: "custom"}},
		DeriveGroups: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom", "custom"}, out.Values(GroupsColumn))
}

func TestNormalizeSampleName(t *testing.T) {
	assert.Equal(t, "a__b_c", NormalizeSampleName("a  b c"))
	assert.Equal(t, "plain", NormalizeSampleName("plain"))
}
