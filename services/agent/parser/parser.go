// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package parser interprets raw reasoning-service output into typed results.
//
// The reasoning service returns well-formed JSON on a good day, JSON wrapped in
// markdown fences on a normal day, and prose with a JSON object buried in it on
// a bad day. Decode tries each shape in order and only gives up with
// UnparsableResponseError when no strategy yields the expected structure.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnparsableResponseError reports reasoning-service output that could not be
// coerced into the expected shape by any extraction strategy. It is propagated
// rather than recovered: guessing structured data risks corrupting downstream
// state.
type UnparsableResponseError struct {
	// Expected names the shape the caller wanted, e.g. "risk assessment".
	Expected string

	// Snippet is a bounded prefix of the offending content for logs.
	Snippet string

	// Err is the last decode failure.
	Err error
}

func (e *UnparsableResponseError) Error() string {
	return fmt.Sprintf("unparsable reasoning response (expected %s): %v; content starts: %q",
		e.Expected, e.Err, e.Snippet)
}

func (e *UnparsableResponseError) Unwrap() error { return e.Err }

// Extraction regexes with flexible matching. Case-insensitive where prose is
// involved, dotall where JSON spans lines.
var (
	// fencedJSONPattern matches a ```json ... ``` (or bare ```) code fence.
	fencedJSONPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")

	// scorePattern recovers "risk score: 7.5" style statements from prose.
	scorePattern = regexp.MustCompile(`(?i)(?:risk[\s_]*)?score[^0-9\-]{0,20}(-?[0-9]+(?:\.[0-9]+)?)`)
)

// ExtractJSON returns the first JSON object or array found in content, trying
// strict decode, then fenced code blocks, then a balanced-brace scan over the
// raw text. The returned bytes are valid JSON.
func ExtractJSON(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("empty content")
	}

	// Strategy 1: the whole response is JSON.
	if json.Valid([]byte(trimmed)) && (trimmed[0] == '{' || trimmed[0] == '[') {
		return json.RawMessage(trimmed), nil
	}

	// Strategy 2: JSON inside a markdown fence.
	if matches := fencedJSONPattern.FindStringSubmatch(content); len(matches) > 1 {
		candidate := strings.TrimSpace(matches[1])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	// Strategy 3: first balanced object or array embedded in prose.
	if candidate := firstBalancedJSON(content); candidate != "" {
		return json.RawMessage(candidate), nil
	}

	return nil, fmt.Errorf("no JSON object found")
}

// Decode extracts JSON from content and unmarshals it into out. On total
// failure it returns *UnparsableResponseError naming the expected shape.
func Decode(content, expected string, out any) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return &UnparsableResponseError{Expected: expected, Snippet: snippet(content), Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &UnparsableResponseError{Expected: expected, Snippet: snippet(content), Err: err}
	}
	return nil
}

// RecoverScore performs the tolerant pattern-based fallback for a numeric risk
// score when structured decode failed. Returns false when no score statement
// is present in the prose.
func RecoverScore(content string) (float64, bool) {
	matches := scorePattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return 0, false
	}
	score, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// firstBalancedJSON scans content for the first brace- or bracket-balanced
// region that is valid JSON. Quote-aware so braces inside strings don't
// unbalance the scan.
func firstBalancedJSON(content string) string {
	for i := 0; i < len(content); i++ {
		open := content[i]
		if open != '{' && open != '[' {
			continue
		}
		var close byte = '}'
		if open == '[' {
			close = ']'
		}
		depth := 0
		inString := false
		escaped := false
		for j := i; j < len(content); j++ {
			ch := content[j]
			switch {
			case escaped:
				escaped = false
			case ch == '\\' && inString:
				escaped = true
			case ch == '"':
				inString = !inString
			case inString:
			case ch == open:
				depth++
			case ch == close:
				depth--
				if depth == 0 {
					candidate := content[i : j+1]
					if json.Valid([]byte(candidate)) {
						return candidate
					}
					j = len(content) // abandon this start position
				}
			}
		}
	}
	return ""
}

func snippet(content string) string {
	const max = 120
	s := strings.TrimSpace(content)
	if len(s) > max {
		return s[:max]
	}
	return s
}
