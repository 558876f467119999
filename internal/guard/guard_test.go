// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRSS(mb uint64) Sampler {
	return func(context.Context) (uint64, error) { return mb * bytesPerMB, nil }
}

func TestCheck_ExitsAboveLimit(t *testing.T) {
	exitCode := -1
	g := New(100, WithSampler(fixedRSS(150)), WithExit(func(code int) { exitCode = code }))
	g.Check(context.Background())
	assert.Equal(t, 0, exitCode)
}

func TestCheck_PassesBelowLimit(t *testing.T) {
	exited := false
	g := New(100, WithSampler(fixedRSS(50)), WithExit(func(int) { exited = true }))
	g.Check(context.Background())
	assert.False(t, exited)
}

func TestCheck_ZeroLimitDisables(t *testing.T) {
	exited := false
	g := New(0, WithSampler(fixedRSS(1<<20)), WithExit(func(int) { exited = true }))
	g.Check(context.Background())
	assert.False(t, exited)
}

func TestCheck_SamplerErrorIsIgnored(t *testing.T) {
	exited := false
	g := New(1, WithSampler(func(context.Context) (uint64, error) { return 0, errors.New("no proc") }), WithExit(func(int) { exited = true }))
	g.Check(context.Background())
	assert.False(t, exited)
}

func TestSetLimit(t *testing.T) {
	exited := false
	g := New(0, WithSampler(fixedRSS(200)), WithExit(func(int) { exited = true }))
	g.SetLimit(100)
	assert.Equal(t, 100, g.Limit())
	g.Check(context.Background())
	assert.True(t, exited)
}

func TestUsage(t *testing.T) {
	g := New(200, WithSampler(fixedRSS(190)))
	u, err := g.Usage(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 190.0, u.RSSMB, 0.001)
	assert.InDelta(t, 95.0, u.Percent(), 0.001)
	assert.Positive(t, u.Goroutines)
	g.Report(context.Background())
}

func TestUsage_RealProcess(t *testing.T) {
	g := New(0)
	u, err := g.Usage(context.Background())
	require.NoError(t, err)
	assert.Positive(t, u.RSSMB)
	assert.Equal(t, 0.0, u.Percent())
}
