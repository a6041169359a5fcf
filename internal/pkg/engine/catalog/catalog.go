// Package catalog maps driver algorithm codes to engine builders. The
// single-letter codes are the ones the CLI accepts: a (Aho-Corasick),
// d (Wu-Manber, hash prefix), p (Wu-Manber, Bloom prefix), h (Set-Horspool)
// and b (Boyer-Moore).
package catalog

import (
	"fmt"

	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/engine/ahocorasick"
	"github.com/rulehound/sigbench/internal/pkg/engine/boyermoore"
	"github.com/rulehound/sigbench/internal/pkg/engine/sethorspool"
	"github.com/rulehound/sigbench/internal/pkg/engine/wumanber"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// Config carries engine construction options sourced from flags/config.
type Config struct {
	WM wumanber.Options
}

// Entry describes one selectable engine.
type Entry struct {
	Code  string
	Name  string
	Build func(set *sigset.Set, cfg Config) (engine.Engine, error)
}

var entries = []Entry{
	{
		Code: "a",
		Name: ahocorasick.Name,
		Build: func(set *sigset.Set, _ Config) (engine.Engine, error) {
			return ahocorasick.New(set)
		},
	},
	{
		Code: "d",
		Name: wumanber.Name,
		Build: func(set *sigset.Set, cfg Config) (engine.Engine, error) {
			opts := cfg.WM
			opts.Bloom = false
			return wumanber.New(set, opts)
		},
	},
	{
		Code: "p",
		Name: wumanber.NameBloom,
		Build: func(set *sigset.Set, cfg Config) (engine.Engine, error) {
			opts := cfg.WM
			opts.Bloom = true
			return wumanber.New(set, opts)
		},
	},
	{
		Code: "h",
		Name: sethorspool.Name,
		Build: func(set *sigset.Set, _ Config) (engine.Engine, error) {
			return sethorspool.New(set)
		},
	},
	{
		Code: "b",
		Name: boyermoore.Name,
		Build: func(set *sigset.Set, _ Config) (engine.Engine, error) {
			return boyermoore.New(set)
		},
	},
}

// All returns every entry in fixed order.
func All() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// ByCode resolves a single-letter algorithm code.
func ByCode(code string) (Entry, error) {
	for _, e := range entries {
		if e.Code == code {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("unknown algorithm %q (want a, d, p, h or b)", code)
}
