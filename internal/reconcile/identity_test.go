package reconcile

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveVariantKey_Deterministic(t *testing.T) {
	a, err := DeriveVariantKey("P1", "Red", "M")
	require.NoError(t, err)
	b, err := DeriveVariantKey("P1", "Red", "M")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	// 固定命名空间下的结果跨进程不变
	assert.Len(t, a, 36)
}

func TestDeriveVariantKey_AnyComponentChanges(t *testing.T) {
	base, err := DeriveVariantKey("P1", "Red", "M")
	require.NoError(t, err)

	cases := []struct {
		name             string
		pid, color, size string
	}{
		{"product", "P2", "Red", "M"},
		{"color", "P1", "Blue", "M"},
		{"size", "P1", "Red", "L"},
		{"case", "P1", "red", "M"},
		{"shifted boundary", "P1R", "ed", "M"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveVariantKey(tc.pid, tc.color, tc.size)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestDeriveVariantKey_SeparatorAmbiguity(t *testing.T) {
	a, err := DeriveVariantKey("a|b", "c", "M")
	require.NoError(t, err)
	b, err := DeriveVariantKey("a", "b|c", "M")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, err := DeriveVariantKey("1:a", "b", "M")
	require.NoError(t, err)
	d, err := DeriveVariantKey("1", "a:b", "M")
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
}

func TestDeriveVariantKey_Unicode(t *testing.T) {
	// NFC 与 NFD 形式视为同一颜色
	composed, err := DeriveVariantKey("P1", "Caf\u00e9", "M")
	require.NoError(t, err)
	decomposed, err := DeriveVariantKey("P1", "Cafe\u0301", "M")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)

	simplified, err := DeriveVariantKey("P1", "红色", "均码")
	require.NoError(t, err)
	traditional, err := DeriveVariantKey("P1", "紅色", "均码")
	require.NoError(t, err)
	assert.NotEqual(t, simplified, traditional)

	emoji, err := DeriveVariantKey("P1", "🔴", "XS")
	require.NoError(t, err)
	assert.NotEqual(t, simplified, emoji)
}

func TestDeriveVariantKey_EmptyRejected(t *testing.T) {
	cases := []struct {
		pid, color, size string
		field            string
	}{
		{"", "Red", "M", "parent_product_id"},
		{"P1", "", "M", "color"},
		{"P1", "Red", "", "size"},
		{"P1", "   ", "M", "color"},
		{"P1", "Red", "\t\n", "size"},
	}
	for _, tc := range cases {
		_, err := DeriveVariantKey(tc.pid, tc.color, tc.size)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrKeyDerivation))

		var kerr *KeyDerivationError
		require.True(t, errors.As(err, &kerr))
		assert.Equal(t, tc.field, kerr.Field)
	}
}

func TestDeriveVariantKey_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcXYZ019-_/|:é红🔴")
	randStr := func() string {
		n := 1 + rng.Intn(8)
		r := make([]rune, n)
		for i := range r {
			r[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(r)
	}

	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		pid, color, size := randStr(), randStr(), randStr()
		k1, err := DeriveVariantKey(pid, color, size)
		require.NoError(t, err)
		k2, err := DeriveVariantKey(pid, color, size)
		require.NoError(t, err)
		assert.Equal(t, k1, k2)

		mutated, err := DeriveVariantKey(pid, color, size+"x")
		require.NoError(t, err)
		assert.NotEqual(t, k1, mutated)

		triple := fmt.Sprintf("%q/%q/%q", pid, color, size)
		if prev, ok := seen[k1]; ok {
			assert.Equal(t, prev, triple, "key collision")
		}
		seen[k1] = triple
	}
}

func TestDeriveMPN_SizeIndependent(t *testing.T) {
	a, err := DeriveMPN("P1", "Red")
	require.NoError(t, err)
	b, err := DeriveMPN("P1", "Red")
	require.NoError(t, err)
	c, err := DeriveMPN("P1", "Blue")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)

	_, err = DeriveMPN("P1", " ")
	assert.ErrorIs(t, err, ErrKeyDerivation)
}
