package theme

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"orionos/pkg/domain"
)

func TestZenithCatalogIsValid(t *testing.T) {
	tokens, fonts, assets := Zenith()
	require.NoError(t, Validate(tokens, fonts, assets))

	counts := map[domain.TokenCategory]int{}
	for _, tok := range tokens {
		counts[tok.Category]++
	}
	require.Equal(t, 13, counts[domain.TokenColor])
	require.Equal(t, 2, counts[domain.TokenShadow])
	require.Equal(t, 3, counts[domain.TokenBorder])
	require.Equal(t, 1, counts[domain.TokenBlur])
	require.Equal(t, 5, counts[domain.TokenSpacing])
	require.Len(t, fonts, 2)
	require.Len(t, assets, 2)
}

func TestZenithReturnsFreshCopies(t *testing.T) {
	tokens, _, _ := Zenith()
	tokens[0].Value = "#FFFFFF"

	again, _, _ := Zenith()
	require.Equal(t, "#292929", again[0].Value)
}

func TestValidateRejectsBadEntries(t *testing.T) {
	cases := map[string][]domain.Token{
		"empty name": {{Name: " ", Value: "1px", Category: domain.TokenBorder}},
		"duplicate": {
			{Name: "a", Value: "1px", Category: domain.TokenBorder},
			{Name: "a", Value: "2px", Category: domain.TokenBorder},
		},
		"bad category": {{Name: "a", Value: "1px", Category: "SIZE"}},
		"empty value":  {{Name: "a", Category: domain.TokenColor}},
	}
	for name, tokens := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate(tokens, nil, nil)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidToken))
		})
	}

	err := Validate(nil, []domain.Font{{Name: "Mono", Category: "TERTIARY"}}, nil)
	require.ErrorIs(t, err, ErrInvalidToken)

	err = Validate(nil, nil, []domain.Asset{{Name: "x", Category: "SOUND"}})
	require.ErrorIs(t, err, ErrInvalidToken)
}
