package mission

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	testCases := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"R", Research, false},
		{"research", Research, false},
		{" Engineering ", Engineering, false},
		{"e", Engineering, false},
		{"design", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseType(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateTopic(t *testing.T) {
	_, err := ValidateTopic("   ")
	assert.ErrorIs(t, err, ErrEmptyTopic)

	got, err := ValidateTopic("  vector databases ")
	require.NoError(t, err)
	assert.Equal(t, "vector databases", got)
}

func TestResolveTier(t *testing.T) {
	testCases := []struct {
		name    string
		typ     Type
		tier    string
		want    string
		wantErr bool
	}{
		{"research default", Research, "", "Budget", false},
		{"engineering default", Engineering, "", "Standard", false},
		{"case insensitive", Research, "deep", "Deep", false},
		{"heavy is engineering only", Research, "Heavy", "", true},
		{"budget is research only", Engineering, "Budget", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveTier(tc.typ, tc.tier)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownTier))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveDomain(t *testing.T) {
	got, err := ResolveDomain(Research, "Trading_Finance")
	require.NoError(t, err)
	assert.Equal(t, "trading_finance", got)

	got, err = ResolveDomain(Engineering, "trading_finance")
	require.NoError(t, err)
	assert.Empty(t, got, "domain packs only apply to research")

	_, err = ResolveDomain(Research, "astrology")
	assert.ErrorIs(t, err, ErrUnknownPack)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("COMPLETE")
	require.NoError(t, err)
	assert.True(t, s.Terminal())

	s, err = ParseStatus("running")
	require.NoError(t, err)
	assert.False(t, s.Terminal())

	_, err = ParseStatus("exploded")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestNormalizeLegacyRecord(t *testing.T) {
	var m Mission
	require.NoError(t, json.Unmarshal([]byte(`{"id":"swm-0040","type":"R","topic":"x","cost":1.15}`), &m))

	m.Normalize()

	assert.Equal(t, ProviderSwarm, m.Provider)
	assert.Equal(t, StatusComplete, m.Status)
	assert.NotNil(t, m.RawOutputs)
	assert.NotNil(t, m.ModelCosts)
	assert.Empty(t, m.Synthesis)
}

func TestEffectiveCost(t *testing.T) {
	assert.Equal(t, 0.38, Mission{Cost: 0.38}.EffectiveCost())
	assert.Equal(t, 0.21, Mission{SwarmOutput: &SwarmOutput{TotalCost: 0.21}}.EffectiveCost())
	assert.Zero(t, Mission{}.EffectiveCost())
}

func TestCloneIsIndependent(t *testing.T) {
	m := Mission{
		ID:         "swm-1",
		RawOutputs: map[string]string{"GPT-4o": "a"},
		ModelCosts: []ModelCost{{Model: "GPT-4o", Cost: 0.1}},
	}
	c := m.Clone()
	c.RawOutputs["GPT-4o"] = "b"
	c.ModelCosts[0].Cost = 9

	assert.Equal(t, "a", m.RawOutputs["GPT-4o"])
	assert.Equal(t, 0.1, m.ModelCosts[0].Cost)
}

func TestCloneKeepsEmptyFields(t *testing.T) {
	testCases := []struct {
		name string
		m    Mission
	}{
		{"empty", Mission{ID: "swm-1", RawOutputs: map[string]string{}, ModelCosts: []ModelCost{}}},
		{"normalized", func() Mission { m := Mission{ID: "swm-2"}; m.Normalize(); return m }()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.m.Clone()
			assert.NotNil(t, c.RawOutputs)
			assert.NotNil(t, c.ModelCosts)
			assert.Empty(t, c.ModelCosts)
		})
	}
	assert.Nil(t, Mission{}.Clone().ModelCosts, "nil stays nil")
}

func TestLocalIDs(t *testing.T) {
	f := Failed(Research, "x", ProviderSwarm, "approval failed")
	assert.True(t, IsLocalID(f.ID))
	assert.Equal(t, StatusError, f.Status)
	assert.Equal(t, "approval failed", f.Synthesis)
	assert.False(t, IsLocalID("swm-0042"))
}

func TestProviderRoster(t *testing.T) {
	assert.Len(t, SDKProviders, 5)
	for _, p := range SDKProviders {
		assert.True(t, p.SDK(), p)
	}
	assert.False(t, ProviderSwarm.SDK())
	assert.Equal(t, "Pydantic AI", ProviderPydantic.Label())
}
