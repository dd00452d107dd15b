package obfuscate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tsqlfmt/pkg/obfuscate"
	"github.com/leapstack-labs/tsqlfmt/pkg/parser"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

func obfuscateString(t *testing.T, mode obfuscate.Mode, sql string) string {
	t.Helper()
	pt, err := parser.ParseString(sql)
	require.NoError(t, err)
	return obfuscate.New(mode).Obfuscate(pt)
}

func TestObfuscateLiterals(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "string literal",
			input:    "select * from t where name='secret'",
			expected: "select * from t where name='str1'",
		},
		{
			name:     "equal values share a placeholder",
			input:    "select 'a', 'b', 'a'",
			expected: "select 'str1', 'str2', 'str1'",
		},
		{
			name:     "unicode prefix kept",
			input:    "select N'abc', n'x'",
			expected: "select N'str1', n'str2'",
		},
		{
			name:     "numbers",
			input:    "select 42, 3.5, 42 from t where id = 7",
			expected: "select 1, 2, 1 from t where id = 3",
		},
		{
			name:     "hex literals",
			input:    "select 0xFF, 0x1f, 0xff",
			expected: "select 0x01, 0x02, 0x01",
		},
		{
			name:     "layout and comments preserved",
			input:    "SELECT  a -- keep 'this'\nFROM t WHERE b = 'x'",
			expected: "SELECT  a -- keep 'this'\nFROM t WHERE b = 'str1'",
		},
		{
			name:     "identifiers untouched",
			input:    "select [Name], @v from dbo.Users",
			expected: "select [Name], @v from dbo.Users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, obfuscateString(t, obfuscate.ModeLiterals, tt.input))
		})
	}
}

func TestObfuscateIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "tables and columns",
			input:    "select name, email from users where name = 'bob'",
			expected: "select id1, id2 from id3 where id1 = 'str1'",
		},
		{
			name:     "bracketed and quoted spellings share names",
			input:    `select [Users].id, "users".id from Users`,
			expected: `select [id1].id2, "id1".id2 from id1`,
		},
		{
			name:     "variables and temp tables",
			input:    "select @a, @b, @a from #t join ##g on 1 = 1",
			expected: "select @v1, @v2, @v1 from #t1 join ##t1 on 1 = 1",
		},
		{
			name:     "system names kept",
			input:    "select count(*), @@rowcount, cast(x as int), dbo.fn(y) from t",
			expected: "select count(*), @@rowcount, cast(id1 as int), id2.id3(id4) from id5",
		},
		{
			name:     "session options kept",
			input:    "set nocount on",
			expected: "set nocount on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, obfuscateString(t, obfuscate.ModeIdentifiers, tt.input))
		})
	}
}

func TestObfuscateMalformedInput(t *testing.T) {
	got := obfuscateString(t, obfuscate.ModeLiterals, "select 'a' from where 'b' 'open")
	assert.Equal(t, "select 'str1' from where 'str2' 'open", got)
}

func TestObfuscateNilTree(t *testing.T) {
	assert.Empty(t, obfuscate.New(obfuscate.ModeLiterals).Obfuscate(nil))
}

func TestPlaceholdersSharedAcrossCalls(t *testing.T) {
	pt, err := parser.ParseString("select 'x', 'y'")
	require.NoError(t, err)

	ph := obfuscate.NewPlaceholders(false)
	var got []string
	for _, leaf := range tree.Leaves(pt.Root) {
		got = append(got, ph.Replace(leaf))
	}
	assert.Contains(t, got, "'str1'")
	assert.Contains(t, got, "'str2'")
	assert.Equal(t, "literals", obfuscate.ModeLiterals.String())
	assert.Equal(t, "identifiers", obfuscate.ModeIdentifiers.String())
}
