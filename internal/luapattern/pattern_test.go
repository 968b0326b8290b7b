// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luapattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLiteral(t *testing.T) {
	m, err := Find("hello world", "world", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 6, m.Start)
	assert.Equal(t, 11, m.End)
	assert.Empty(t, m.Captures)
}

func TestFindNoMatch(t *testing.T) {
	m, err := Find("hello world", "xyz", 0)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindCharacterClass(t *testing.T) {
	m, err := Find("abc 123 def", "%d+", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "123", "abc 123 def"[m.Start:m.End])
}

func TestFindAnchored(t *testing.T) {
	m, err := Find("  abc", "^abc", 0)
	require.NoError(t, err)
	assert.Nil(t, m, "anchored pattern must not skip leading characters")

	m, err = Find("abc", "^abc", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Start)
}

func TestFindCapture(t *testing.T) {
	m, err := Find("key=value", "(%a+)=(%a+)", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, m.Captures, 2)
	assert.Equal(t, "key", "key=value"[m.Captures[0].Start:m.Captures[0].End])
	assert.Equal(t, "value", "key=value"[m.Captures[1].Start:m.Captures[1].End])
}

func TestFindPositionCapture(t *testing.T) {
	m, err := Find("abc", "a()b", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, m.Captures, 1)
	assert.True(t, m.Captures[0].Position)
	assert.Equal(t, 1, m.Captures[0].Start)
	assert.Equal(t, 1, m.Captures[0].End)
}

func TestFindBalancedMatch(t *testing.T) {
	m, err := Find("(foo (bar) baz) qux", "%b()", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "(foo (bar) baz)", "(foo (bar) baz) qux"[m.Start:m.End])
}

func TestFindBackreference(t *testing.T) {
	m, err := Find("abcabc", "(abc)%1", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, 6, m.End)

	m, err = Find("abcxyz", "(abc)%1", 0)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindInitOffset(t *testing.T) {
	m, err := Find("abcabc", "abc", 2)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.Start)
}

func TestFindNegativeInit(t *testing.T) {
	m, err := Find("abcabc", "abc", -3)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.Start)
}

func TestFindQuantifiers(t *testing.T) {
	m, err := Find("aaa", "a-", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, 0, m.End, "- is a lazy quantifier and should match as little as possible")

	m, err = Find("aaa", "a*", 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.End, "* is greedy and should match as much as possible")
}

func TestFindTooComplex(t *testing.T) {
	pat := ""
	for i := 0; i < maxMatchDepth+10; i++ {
		pat += "a-"
	}
	_, err := Find("aaaaaaaaaa", pat, 0)
	assert.ErrorIs(t, err, errTooComplex)
}
