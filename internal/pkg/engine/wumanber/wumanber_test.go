package wumanber

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

func buildSet(t *testing.T, sigs ...sigset.Signature) *sigset.Set {
	t.Helper()
	set, err := sigset.New(sigs)
	require.NoError(t, err)
	return set
}

func scanAll(t *testing.T, e engine.Engine, buf []byte) []engine.Match {
	t.Helper()
	var matches []engine.Match
	st := e.Scan(buf, engine.CollectMatches(&matches))
	require.NotNil(t, st)
	return matches
}

func TestChooseBlockSize(t *testing.T) {
	tests := []struct {
		name string
		sigs []sigset.Signature
		want int
	}{
		{
			name: "short min length picks 2",
			sigs: []sigset.Signature{
				{Pattern: []byte("ab")},
				{Pattern: []byte("abcdefgh")},
			},
			want: 2,
		},
		{
			name: "medium patterns pick 3",
			sigs: []sigset.Signature{
				{Pattern: []byte("abcdef")},
				{Pattern: []byte("ghijkl")},
			},
			want: 3,
		},
		{
			name: "long average picks 4",
			sigs: []sigset.Signature{
				{Pattern: []byte(strings.Repeat("a", 40))},
				{Pattern: []byte(strings.Repeat("b", 40))},
			},
			want: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := buildSet(t, tt.sigs...)
			assert.Equal(t, tt.want, ChooseBlockSize(set))
		})
	}
}

func TestNew_B4GatedBehindOption(t *testing.T) {
	long := buildSet(t,
		sigset.Signature{Pattern: []byte(strings.Repeat("a", 40) + "x")},
		sigset.Signature{Pattern: []byte(strings.Repeat("b", 40) + "y")},
	)

	e, err := New(long, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, e.(*Engine).BlockSize())

	e, err = New(long, Options{AllowB4: true})
	require.NoError(t, err)
	assert.Equal(t, 4, e.(*Engine).BlockSize())
}

func TestNew_RejectsInvalidBlockSize(t *testing.T) {
	set := buildSet(t, sigset.Signature{Pattern: []byte("abcd")})
	for _, b := range []int{1, 5, -1} {
		_, err := New(set, Options{BlockSize: b})
		assert.Error(t, err, "block size %d", b)
	}
}

func TestEngine_MalwareScenario(t *testing.T) {
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("MALWARE")},
		sigset.Signature{Pattern: []byte("EVIL")},
		sigset.Signature{Pattern: []byte("BAD")},
	)

	for _, mode := range []struct {
		name string
		opts Options
	}{
		{"deterministic", Options{}},
		{"bloom", Options{Bloom: true}},
	} {
		t.Run(mode.name, func(t *testing.T) {
			e, err := New(set, mode.opts)
			require.NoError(t, err)

			matches := scanAll(t, e, []byte("THISBADFILEHASAVIRUSEVILMALWAREINSIDE"))
			assert.ElementsMatch(t, []engine.Match{
				{PID: 2, Offset: 4},  // BAD
				{PID: 1, Offset: 20}, // EVIL
				{PID: 0, Offset: 24}, // MALWARE
			}, matches)
		})
	}
}

func TestEngine_Overlap(t *testing.T) {
	set := buildSet(t, sigset.Signature{Pattern: []byte("aa")})
	e, err := New(set, Options{})
	require.NoError(t, err)

	matches := scanAll(t, e, []byte("aaaa"))
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 0},
		{PID: 0, Offset: 1},
		{PID: 0, Offset: 2},
	}, matches)
}

func TestEngine_PatternShorterThanBlock(t *testing.T) {
	// "a" is shorter than B=2 and must still be found everywhere.
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("a")},
		sigset.Signature{Pattern: []byte("xy")},
	)
	e, err := New(set, Options{BlockSize: 2})
	require.NoError(t, err)

	matches := scanAll(t, e, []byte("aqxya"))
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 0},
		{PID: 0, Offset: 4},
		{PID: 1, Offset: 2},
	}, matches)
}

func TestEngine_VerifiesTruePatternLength(t *testing.T) {
	// The window is the shortest pattern; longer patterns must be
	// verified over their full length, not the window.
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("abc")},
		sigset.Signature{Pattern: []byte("abcdef")},
	)
	e, err := New(set, Options{})
	require.NoError(t, err)

	matches := scanAll(t, e, []byte("zzabcdefzz"))
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 2},
		{PID: 1, Offset: 2},
	}, matches)

	// "abcdeX" must not report the longer pattern.
	matches = scanAll(t, e, []byte("zzabcdeXzz"))
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 2},
	}, matches)
}

func TestEngine_LongPatternNearBufferEnd(t *testing.T) {
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("abc")},
		sigset.Signature{Pattern: []byte("abcdef")},
	)
	e, err := New(set, Options{})
	require.NoError(t, err)

	// The longer pattern would run past the buffer; only the short one
	// matches.
	matches := scanAll(t, e, []byte("zzabc"))
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 2},
	}, matches)
}

func TestEngine_Nocase(t *testing.T) {
	set := buildSet(t, sigset.Signature{Pattern: []byte("AbC"), Nocase: true})
	for _, mode := range []Options{{}, {Bloom: true}} {
		e, err := New(set, mode)
		require.NoError(t, err)

		matches := scanAll(t, e, []byte("xxABcyyabCzz"))
		assert.ElementsMatch(t, []engine.Match{
			{PID: 0, Offset: 2},
			{PID: 0, Offset: 7},
		}, matches)
	}
}

func TestEngine_MixedCaseWithBloom(t *testing.T) {
	// Folded probes keep Bloom sound even when exact-case and nocase
	// signatures share the instance.
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("AbC"), Nocase: true},
		sigset.Signature{Pattern: []byte("DeF")},
	)
	e, err := New(set, Options{Bloom: true})
	require.NoError(t, err)

	matches := scanAll(t, e, []byte("abc DeF def ABC"))
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 0},
		{PID: 0, Offset: 12},
		{PID: 1, Offset: 4},
	}, matches)
}

func TestEngine_BinaryPatterns(t *testing.T) {
	set := buildSet(t, sigset.Signature{Pattern: []byte{0x00, 0x01, 0x02}})
	e, err := New(set, Options{})
	require.NoError(t, err)

	buf := []byte{0xff, 0x00, 0x01, 0x02, 0x00, 0x01, 0x02}
	matches := scanAll(t, e, buf)
	assert.ElementsMatch(t, []engine.Match{
		{PID: 0, Offset: 1},
		{PID: 0, Offset: 4},
	}, matches)
}

func TestEngine_EmptyInput(t *testing.T) {
	set := buildSet(t, sigset.Signature{Pattern: []byte("abc")})
	e, err := New(set, Options{Bloom: true})
	require.NoError(t, err)

	var matches []engine.Match
	st := e.Scan(nil, engine.CollectMatches(&matches))
	assert.Empty(t, matches)
	assert.GreaterOrEqual(t, st.ElapsedSec, 0.0)
	assert.Equal(t, NameBloom, st.Algorithm)
}

func TestEngine_StatsCounters(t *testing.T) {
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("needle")},
	)
	e, err := New(set, Options{Bloom: true})
	require.NoError(t, err)

	st := e.Scan([]byte("haystack with a needle inside"), func(engine.Match) bool { return true })
	assert.Equal(t, uint64(1), st.ExactMatches)
	assert.Greater(t, st.Windows, uint64(0))
	assert.Greater(t, st.SumShift, uint64(0))
	assert.Equal(t, st.BloomChecks, st.HashHits)
	assert.LessOrEqual(t, st.BloomPass, st.BloomChecks)
}

func TestEngine_Cancellation(t *testing.T) {
	set := buildSet(t, sigset.Signature{Pattern: []byte("aa")})
	e, err := New(set, Options{})
	require.NoError(t, err)

	var matches []engine.Match
	st := e.Scan([]byte("aaaaaaaa"), func(m engine.Match) bool {
		matches = append(matches, m)
		return false
	})
	assert.Len(t, matches, 1)
	require.NotNil(t, st)
}

func TestEngine_Determinism(t *testing.T) {
	set := buildSet(t,
		sigset.Signature{Pattern: []byte("he")},
		sigset.Signature{Pattern: []byte("she")},
		sigset.Signature{Pattern: []byte("hers")},
	)
	e, err := New(set, Options{Bloom: true})
	require.NoError(t, err)

	buf := []byte("ushershehers")
	first := scanAll(t, e, buf)
	stFirst := e.Scan(buf, func(engine.Match) bool { return true })
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scanAll(t, e, buf))
		st := e.Scan(buf, func(engine.Match) bool { return true })
		assert.Equal(t, stFirst.Windows, st.Windows)
		assert.Equal(t, stFirst.SumShift, st.SumShift)
		assert.Equal(t, stFirst.ChainSteps, st.ChainSteps)
		assert.Equal(t, stFirst.ExactMatches, st.ExactMatches)
	}
}
