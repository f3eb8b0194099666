package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(src string) []Token {
	l := New(src)
	var out []Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok.Kind == EOF {
			return out
		}
	}
}

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestLexer_MatchPattern(t *testing.T) {
	tokens := scan(`MATCH (p:Person {name: "Alice"}) RETURN p.name`)
	assert.Equal(t, []Kind{
		MATCH, LPAREN, IDENT, COLON, IDENT, LBRACE, IDENT, COLON, STRING, RBRACE, RPAREN,
		RETURN, IDENT, DOT, IDENT, EOF,
	}, kinds(tokens))
}

func TestLexer_KeywordsAreCaseInsensitive(t *testing.T) {
	tokens := scan(`match (n) return n`)
	assert.Equal(t, MATCH, tokens[0].Kind)
	assert.Equal(t, RETURN, tokens[4].Kind)
}

func TestLexer_VariableLengthEdge(t *testing.T) {
	tokens := scan(`-[:KNOWS*1..2]->`)
	assert.Equal(t, []Kind{
		DASH, LBRACKET, COLON, IDENT, STAR, INT, DOTDOT, INT, RBRACKET, DASH, GT, EOF,
	}, kinds(tokens))
}

func TestLexer_NumbersAndComparisons(t *testing.T) {
	tokens := scan(`WHERE p.age >= 21 AND p.score < 3.5`)
	var got []Kind
	for _, tok := range tokens {
		got = append(got, tok.Kind)
	}
	assert.Contains(t, got, GTE)
	assert.Contains(t, got, LT)
	assert.Contains(t, got, INT)
	assert.Contains(t, got, FLOAT)
}

func TestLexer_StringsAndParams(t *testing.T) {
	tokens := scan(`WHERE p.name = $who AND p.city = "Kyoto"`)
	var params, strs []string
	for _, tok := range tokens {
		switch tok.Kind {
		case PARAM:
			params = append(params, tok.Lit)
		case STRING:
			strs = append(strs, tok.Lit)
		}
	}
	assert.Equal(t, []string{"who"}, params)
	assert.Equal(t, []string{"Kyoto"}, strs)
}

func TestLexer_PositionsTracked(t *testing.T) {
	tokens := scan("MATCH\n  (n)")
	require.GreaterOrEqual(t, len(tokens), 3)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Col)
}

func TestLexer_IllegalRune(t *testing.T) {
	tokens := scan("MATCH ^")
	assert.Equal(t, ILLEGAL, tokens[1].Kind)
}
