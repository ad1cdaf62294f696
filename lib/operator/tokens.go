// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const fence = "```"

// tokenize splits a command line into arguments. Whitespace separates
// arguments; single or double quotes group words and may span lines; a
// backslash escapes the next character inside double quotes. A fenced
// code block is one argument holding the block's content without the
// info string.
func tokenize(input string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false
	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for index := 0; index < len(input); {
		r, size := utf8.DecodeRuneInString(input[index:])
		switch {
		case !inToken && strings.HasPrefix(input[index:], fence):
			block, consumed, err := fencedBlock(input[index:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, block)
			index += consumed
			continue
		case unicode.IsSpace(r):
			flush()
		case r == '"' || r == '\'':
			inToken = true
			end, err := quoted(input, index+size, byte(r), &current)
			if err != nil {
				return nil, err
			}
			index = end
			continue
		default:
			inToken = true
			current.WriteRune(r)
		}
		index += size
	}
	flush()
	return tokens, nil
}

// quoted copies a quoted section starting after its opening quote into
// current and returns the index just past the closing quote.
func quoted(input string, index int, quote byte, current *strings.Builder) (int, error) {
	for index < len(input) {
		c := input[index]
		switch {
		case c == quote:
			return index + 1, nil
		case quote == '"' && c == '\\' && index+1 < len(input):
			index++
		}
		r, size := utf8.DecodeRuneInString(input[index:])
		current.WriteRune(r)
		index += size
	}
	return 0, fmt.Errorf("unterminated %c quote", quote)
}

// fencedBlock reads a ``` block at the start of input and returns its
// content and the number of bytes consumed.
func fencedBlock(input string) (string, int, error) {
	rest := input[len(fence):]
	newline := strings.IndexByte(rest, '\n')
	if newline < 0 {
		return "", 0, fmt.Errorf("code block has no content")
	}
	body := rest[newline+1:]
	end := strings.Index(body, fence)
	if end < 0 {
		return "", 0, fmt.Errorf("unterminated code block")
	}
	content := body[:end]
	consumed := len(fence) + newline + 1 + end + len(fence)
	return content, consumed, nil
}
