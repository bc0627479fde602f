package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Option Normalization Tests
// ============================================================================

func TestNormalizeOptions_Array(t *testing.T) {
	assert.Equal(t, []string{"S", "M", "L"}, NormalizeOptions([]string{"S", "M", "L"}))
	assert.Equal(t, []string{"S", "M"}, NormalizeOptions([]any{"S", " M ", "", nil}))
	assert.Equal(t, []string{"38", "40"}, NormalizeOptions([]any{38, 40}))
}

func TestNormalizeOptions_DelimitedString(t *testing.T) {
	assert.Equal(t, []string{"S", "M", "L"}, NormalizeOptions("S, M, L"))
	assert.Equal(t, []string{"S", "M", "L"}, NormalizeOptions("S|M|L"))
	// pipe wins when both delimiters appear; commas stay inside values
	assert.Equal(t, []string{"red, dark", "blue"}, NormalizeOptions("red, dark|blue"))
}

func TestNormalizeOptions_Map(t *testing.T) {
	got := NormalizeOptions(map[string]any{"b": "M", "a": "S", "c": "L"})
	assert.Equal(t, []string{"S", "M", "L"}, got)

	got = NormalizeOptions(map[string]string{"1": " S ", "2": "", "3": "S"})
	assert.Equal(t, []string{"S"}, got)
}

func TestNormalizeOptions_Dedupe(t *testing.T) {
	assert.Equal(t, []string{"M", "L"}, NormalizeOptions("M,L,M, M"))
}

func TestNormalizeOptions_Malformed(t *testing.T) {
	assert.Nil(t, NormalizeOptions(nil))
	assert.Nil(t, NormalizeOptions(42))
	assert.Nil(t, NormalizeOptions(""))
	assert.Nil(t, NormalizeOptions(" , , "))
	assert.Nil(t, NormalizeOptions([]any{nil, "  "}))
}

// ============================================================================
// Selection Tests
// ============================================================================

func TestSelection_Canonical_OrderIndependent(t *testing.T) {
	a := Selection{"size": "M", "color": "navy"}
	b := Selection{"color": "navy", "size": "M"}
	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.Equal(t, "color=navy;size=M", a.Canonical())
}

func TestSelection_Canonical_Empty(t *testing.T) {
	assert.Equal(t, "", Selection(nil).Canonical())
	assert.Equal(t, "", Selection{}.Canonical())
}

func TestValidateSelection(t *testing.T) {
	variants := map[string]any{
		"Size":  "S,M,L",
		"color": []string{"navy", "white"},
	}

	tests := []struct {
		name    string
		sel     Selection
		wantErr string
	}{
		{"valid full selection", Selection{"size": "M", "color": "navy"}, ""},
		{"axis names match case-insensitively", Selection{"SIZE": "L"}, ""},
		{"values are trimmed", Selection{"size": " M "}, ""},
		{"empty selection is always valid", nil, ""},
		{"unknown axis", Selection{"flavour": "mint"}, `unknown variant axis "flavour"`},
		{"value outside the axis options", Selection{"size": "GIGANTIC"}, `not an option for variant axis "size"`},
		{"option values are case-sensitive", Selection{"color": "Navy"}, `not an option`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSelection(tc.sel, variants)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestValidateSelection_NoVariantAxes(t *testing.T) {
	err := ValidateSelection(Selection{"size": "M"}, nil)
	assert.ErrorContains(t, err, `unknown variant axis "size"`)
}

func TestDefaultSelection(t *testing.T) {
	variants := map[string]any{
		"size":  "S,M,L",
		"color": []string{"navy", "white"},
		"fit":   map[string]any{"a": "regular", "b": "slim"},
	}
	sel := DefaultSelection(variants)
	assert.Equal(t, Selection{"size": "S", "color": "navy", "fit": "regular"}, sel)
}

func TestDefaultSelection_EmptyAxes(t *testing.T) {
	assert.Nil(t, DefaultSelection(nil))
	assert.Nil(t, DefaultSelection(map[string]any{"size": ""}))

	sel := DefaultSelection(map[string]any{"size": "M", "color": nil})
	assert.Equal(t, Selection{"size": "M"}, sel)
}
