package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlossary_AddAndLookup(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddGlossaryTerm(ctx, "ar", "ru", " الله ", "Аллах"))
	require.NoError(t, s.AddGlossaryTerm(ctx, "ar", "ru", "الصلاة", "намаз"))
	require.NoError(t, s.AddGlossaryTerm(ctx, "ar", "en", "الصلاة", "prayer"))

	terms, err := s.GlossaryTerms(ctx, "ar", "ru")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"الله": "Аллах", "الصلاة": "намаз"}, terms)

	// Re-adding a source term replaces its translation.
	require.NoError(t, s.AddGlossaryTerm(ctx, "ar", "ru", "الصلاة", "молитва"))
	terms, err = s.GlossaryTerms(ctx, "ar", "ru")
	require.NoError(t, err)
	assert.Equal(t, "молитва", terms["الصلاة"])

	all, err := s.ListGlossaryTerms(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyEn, err := s.ListGlossaryTerms(ctx, "", "en")
	require.NoError(t, err)
	require.Len(t, onlyEn, 1)

	require.NoError(t, s.DeleteGlossaryTerm(ctx, onlyEn[0].ID))
	assert.Error(t, s.DeleteGlossaryTerm(ctx, onlyEn[0].ID))
}

func TestGlossary_RejectsEmpty(t *testing.T) {
	s, _ := setupTestStore(t)
	assert.Error(t, s.AddGlossaryTerm(context.Background(), "ar", "ru", "  ", "x"))
}
