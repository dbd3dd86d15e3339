package celp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/gocelp/internal/amrnb"
	"github.com/thesyncim/gocelp/internal/celp"
	"github.com/thesyncim/gocelp/internal/evrc"
	"github.com/thesyncim/gocelp/internal/g7231"
	"github.com/thesyncim/gocelp/internal/g729"
	"github.com/thesyncim/gocelp/internal/sipr"
	"github.com/thesyncim/gocelp/internal/wmavoice"
)

func allProfiles(t *testing.T) []*celp.Profile {
	out := []*celp.Profile{amrnb.Profile, g7231.Profile, g729.Profile, evrc.Profile}
	for mode := sipr.Mode16k; mode <= sipr.Mode5k0; mode++ {
		p, err := sipr.ProfileFor(mode)
		require.NoError(t, err)
		out = append(out, p)
	}
	for mode := 0; mode < 16; mode++ {
		p, err := wmavoice.ProfileFor(mode)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestProfilesValid(t *testing.T) {
	for _, p := range allProfiles(t) {
		assert.NoError(t, p.Validate(), p.Name)
		assert.Positive(t, p.HistoryLen(), p.Name)
		assert.NotEqual(t, "", p.Family.String(), p.Name)
	}
}

func TestProfileValidateRejects(t *testing.T) {
	base := *g729.Profile
	cases := map[string]func(p *celp.Profile){
		"sample rate": func(p *celp.Profile) { p.SampleRate = 0 },
		"subframes":   func(p *celp.Profile) { p.Subframes = 0 },
		"frame size":  func(p *celp.Profile) { p.FrameSize = p.Subframes*p.SubframeSize + 1 },
		"order":       func(p *celp.Profile) { p.Order = celp.MaxOrder + 1 },
		"pitch range": func(p *celp.Profile) { p.PitchMax = p.PitchMin - 1 },
		"gain taps":   func(p *celp.Profile) { p.GainPred = p.GainPred[:0] },
	}
	for name, mutate := range cases {
		p := base
		mutate(&p)
		assert.ErrorIs(t, p.Validate(), celp.ErrInvalidParameter, name)
	}
}

func TestClampLag(t *testing.T) {
	p := g729.Profile
	assert.Equal(t, p.PitchMin, p.ClampLag(0))
	assert.Equal(t, p.PitchMax, p.ClampLag(1000))
	assert.Equal(t, p.PitchMin+1, p.ClampLag(p.PitchMin+1))
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "G.729", celp.FamilyG729.String())
	assert.Equal(t, "Family(42)", celp.Family(42).String())
}
