// Package rules loads Snort-style rulesets and extracts the literal
// content patterns the matching engines search for. Only payload literals
// are interpreted: every content:"..." option contributes one pattern,
// with |AB CD| hex escapes decoded and the nocase modifier applied to the
// content it follows. All other rule semantics pass through as opaque
// metadata (msg, sid).
package rules

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rulehound/sigbench/internal/pkg/logger"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// maxLineLen bounds a single rule line; snort3-community rules stay well
// under this.
const maxLineLen = 64 * 1024

// Content is one literal extracted from a rule together with its
// modifiers and rule metadata.
type Content struct {
	Pattern []byte
	Nocase  bool
	Message string
	SID     string
}

// LoadFile parses a ruleset file and returns the signature set built from
// every extracted content. Rules that fail to parse are skipped with a
// debug log; rules without content contribute nothing and are not logged.
// The core is fed the filtered set.
func LoadFile(path string) (*sigset.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ruleset: %w", err)
	}
	defer f.Close()

	var contents []Content
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if len(line) < 5 || strings.HasPrefix(line, "#") {
			continue
		}
		cs, err := ParseRule(line)
		if err != nil {
			logger.Debug("skipping unparsable rule", "line", lineNo, "error", err)
			continue
		}
		contents = append(contents, cs...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}

	return BuildSet(contents)
}

// BuildSet dedupes contents by (pattern bytes, nocase) keeping the first
// occurrence's metadata, then builds the signature set.
func BuildSet(contents []Content) (*sigset.Set, error) {
	seen := make(map[string]bool, len(contents))
	sigs := make([]sigset.Signature, 0, len(contents))
	for _, c := range contents {
		if len(c.Pattern) == 0 {
			continue
		}
		key := dedupeKey(c.Pattern, c.Nocase)
		if seen[key] {
			continue
		}
		seen[key] = true
		sigs = append(sigs, sigset.Signature{
			Pattern: c.Pattern,
			Nocase:  c.Nocase,
			Message: c.Message,
			RuleID:  c.SID,
		})
	}
	return sigset.New(sigs)
}

func dedupeKey(p []byte, nocase bool) string {
	if nocase {
		return "i:" + string(sigset.FoldSlice(p))
	}
	return "s:" + string(p)
}

// ParseRule extracts every content literal from one rule line. The
// options section is the parenthesized tail when present, otherwise the
// whole line.
func ParseRule(line string) ([]Content, error) {
	opts := line
	if open := strings.IndexByte(line, '('); open >= 0 {
		if end := strings.LastIndexByte(line, ')'); end > open {
			opts = line[open+1 : end]
		} else {
			opts = line[open+1:]
		}
	}

	msg := extractQuoted(opts, "msg:")
	sid := extractPlain(opts, "sid:")

	var out []Content
	rest := opts
	for {
		idx := strings.Index(rest, "content:")
		if idx < 0 {
			break
		}
		rest = rest[idx+len("content:"):]

		pattern, tail, err := parseContentLiteral(rest)
		if err != nil {
			return nil, err
		}
		rest = tail

		// Modifiers up to the next content option belong to this one.
		modEnd := len(rest)
		if next := strings.Index(rest, "content:"); next >= 0 {
			modEnd = next
		}
		nocase := hasOption(rest[:modEnd], "nocase")

		out = append(out, Content{
			Pattern: pattern,
			Nocase:  nocase,
			Message: msg,
			SID:     sid,
		})
	}
	return out, nil
}

// parseContentLiteral consumes a quoted content value, decoding backslash
// escapes and |..| hex runs. Returns the decoded bytes and the unconsumed
// tail after the closing quote.
func parseContentLiteral(s string) ([]byte, string, error) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '!') {
		i++
	}
	if i >= len(s) || s[i] != '"' {
		return nil, "", fmt.Errorf("content value is not quoted")
	}
	i++

	var out []byte
	hexMode := false
	var hexBuf strings.Builder
	for i < len(s) {
		c := s[i]
		switch {
		case hexMode:
			if c == '|' {
				decoded, err := decodeHexRun(hexBuf.String())
				if err != nil {
					return nil, "", err
				}
				out = append(out, decoded...)
				hexBuf.Reset()
				hexMode = false
			} else {
				hexBuf.WriteByte(c)
			}
			i++
		case c == '|':
			hexMode = true
			i++
		case c == '\\':
			if i+1 >= len(s) {
				return nil, "", fmt.Errorf("dangling escape in content")
			}
			out = append(out, s[i+1])
			i += 2
		case c == '"':
			return out, s[i+1:], nil
		default:
			out = append(out, c)
			i++
		}
	}
	return nil, "", fmt.Errorf("unterminated content literal")
}

func decodeHexRun(s string) ([]byte, error) {
	var out []byte
	fields := strings.Fields(s)
	for _, f := range fields {
		if len(f)%2 != 0 {
			return nil, fmt.Errorf("odd-length hex run %q", f)
		}
		for i := 0; i < len(f); i += 2 {
			hi, ok1 := hexVal(f[i])
			lo, ok2 := hexVal(f[i+1])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("bad hex byte %q", f[i:i+2])
			}
			out = append(out, hi<<4|lo)
		}
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// hasOption reports whether a standalone option name appears in the
// modifier span, delimited by option separators.
func hasOption(span, name string) bool {
	for _, part := range strings.Split(span, ";") {
		if strings.TrimSpace(part) == name {
			return true
		}
	}
	return false
}

func extractQuoted(opts, key string) string {
	idx := strings.Index(opts, key)
	if idx < 0 {
		return ""
	}
	rest := opts[idx+len(key):]
	start := strings.IndexByte(rest, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(rest[start+1:], '"')
	if end < 0 {
		return ""
	}
	return rest[start+1 : start+1+end]
}

func extractPlain(opts, key string) string {
	idx := strings.Index(opts, key)
	if idx < 0 {
		return ""
	}
	rest := opts[idx+len(key):]
	end := strings.IndexByte(rest, ';')
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimSpace(rest[:end])
}
