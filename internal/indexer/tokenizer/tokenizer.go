// Package tokenizer provides text tokenisation for the search engine.
// It splits input on ASCII whitespace, keeps only the ASCII letters of every
// token, lower-cases them and caps each term at MaxTermLength characters.
// Bytes outside A-Z and a-z, including every byte of a multi-byte UTF-8
// sequence, are dropped.
package tokenizer

import (
	"iter"
	"strings"
)

// MaxTermLength is the maximum number of letters kept from a normalised term.
// Longer terms are truncated, both when indexing and when querying.
const MaxTermLength = 100

// Terms returns a lazy sequence of the normalised terms in text. Tokens that
// normalise to the empty string are skipped.
func Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for word := range strings.FieldsFuncSeq(text, isASCIISpace) {
			term := Normalize(word)
			if term == "" {
				continue
			}
			if !yield(term) {
				return
			}
		}
	}
}

// Tokenize collects every normalised term of text, in order.
func Tokenize(text string) []string {
	terms := make([]string, 0, len(text)/6)
	for term := range Terms(text) {
		terms = append(terms, term)
	}
	return terms
}

// Normalize strips everything but ASCII letters from word, lower-cases the
// rest and truncates the result to MaxTermLength letters.
func Normalize(word string) string {
	var sb strings.Builder
	sb.Grow(min(len(word), MaxTermLength))
	for i := 0; i < len(word) && sb.Len() < MaxTermLength; i++ {
		c := word[i]
		switch {
		case 'a' <= c && c <= 'z':
			sb.WriteByte(c)
		case 'A' <= c && c <= 'Z':
			sb.WriteByte(c + 'a' - 'A')
		}
	}
	return sb.String()
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
