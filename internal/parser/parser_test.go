package parser_test

import (
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/adpulse-cli/internal/parser"
)

func TestReadCSV_HeaderOnly(t *testing.T) {
	tbl, err := parser.ReadCSV("Spend,Impressions,Clicks\n", parser.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Spend", "Impressions", "Clicks"}, tbl.Headers)
	assert.Empty(t, tbl.Records)
}

func TestReadCSV_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   \n\t\n", "\uFEFF"} {
		tbl, err := parser.ReadCSV(in, parser.DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, tbl.Headers)
		assert.Empty(t, tbl.Records)
	}
}

func TestReadCSV_TrimsAndSkipsBlankLines(t *testing.T) {
	in := "\uFEFF\n  Campaign name,Spend\nAlpha,100\n\n   \nBeta,60\n\n"
	tbl, err := parser.ReadCSV(in, parser.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Campaign name", "Spend"}, tbl.Headers)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, parser.Record{"Campaign name": "Alpha", "Spend": "100"}, tbl.Records[0])
	assert.Equal(t, "Beta", tbl.Records[1]["Campaign name"])
}

func TestReadCSV_HeadersNotNormalized(t *testing.T) {
	tbl, err := parser.ReadCSV("Spend, Clicks\n1,2", parser.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Spend", " Clicks"}, tbl.Headers)
	assert.Equal(t, "2", tbl.Records[0][" Clicks"])
}

func TestReadCSV_DuplicateAndEmptyHeaders(t *testing.T) {
	tbl, err := parser.ReadCSV("Spend,Spend,,Clicks,Spend\n1,2,x,3,4", parser.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Spend", "Spend_1", "Clicks", "Spend_2"}, tbl.Headers)
	assert.Equal(t, parser.Record{"Spend": "1", "Spend_1": "2", "Clicks": "3", "Spend_2": "4"}, tbl.Records[0])
}

func TestReadCSV_QuotedFields(t *testing.T) {
	in := "Campaign name,Spend\n\"Spring, Sale\",\"1,200\"\n\"He said \"\"hi\"\"\",5"
	tbl, err := parser.ReadCSV(in, parser.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, "Spring, Sale", tbl.Records[0]["Campaign name"])
	assert.Equal(t, "1,200", tbl.Records[0]["Spend"])
	assert.Equal(t, `He said "hi"`, tbl.Records[1]["Campaign name"])
}

func TestReadCSV_UnterminatedQuote(t *testing.T) {
	_, err := parser.ReadCSV("Spend,Clicks\n100,\"5", parser.DefaultOptions())
	require.Error(t, err)

	var mie *parser.MalformedInputError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, 2, mie.Line)
	assert.True(t, errors.Is(err, csv.ErrQuote))
}

func TestReadCSV_BareQuoteInUnquotedField(t *testing.T) {
	in := "Ad name,Spend,Impressions,Clicks\n12\" banner,100,1000,10\n\"Quoted, \"\"ok\"\"\",5,50,1\nsay \"hi\",1,2,3"
	tbl, err := parser.ReadCSV(in, parser.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tbl.Records, 3)
	assert.Equal(t, `12" banner`, tbl.Records[0]["Ad name"])
	assert.Equal(t, "100", tbl.Records[0]["Spend"])
	assert.Equal(t, `Quoted, "ok"`, tbl.Records[1]["Ad name"])
	assert.Equal(t, `say "hi"`, tbl.Records[2]["Ad name"])
	assert.Equal(t, "3", tbl.Records[2]["Clicks"])
}

func TestReadCSV_QuoteErrors(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		line, col int
	}{
		{"unterminated after bare quote", "Ad name,Spend\n12\" banner,1\n\"open,2", 3, 1},
		{"unterminated across lines", "Ad name,Spend\n\"a\nb,1\n2,3", 2, 1},
		{"text after closing quote", "Ad name,Spend\n\"a\"b,1", 2, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.ReadCSV(tc.in, parser.DefaultOptions())
			var mie *parser.MalformedInputError
			require.ErrorAs(t, err, &mie)
			assert.Equal(t, tc.line, mie.Line)
			assert.Equal(t, tc.col, mie.Column)
			assert.ErrorIs(t, err, csv.ErrQuote)
		})
	}
}

func TestReadCSV_FieldCountMismatch(t *testing.T) {
	cases := []struct {
		name string
		in   string
		line int
	}{
		{"too few", "Spend,Clicks\n100,5\n200", 3},
		{"too many", "Spend,Clicks\n100,5,9", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.ReadCSV(tc.in, parser.DefaultOptions())
			var mie *parser.MalformedInputError
			require.ErrorAs(t, err, &mie)
			assert.Equal(t, tc.line, mie.Line)
			assert.ErrorIs(t, err, csv.ErrFieldCount)
			assert.Contains(t, err.Error(), "malformed input at line")
		})
	}
}

func TestReadCSV_DelimiterSniffing(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"semicolon", "Spend;Clicks\n100;5"},
		{"tab", "Spend\tClicks\n100\t5"},
		{"pipe", "Spend|Clicks\n100|5"},
		{"quoted comma ignored", "\"Spend,total\";Clicks\n100;5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl, err := parser.ReadCSV(tc.in, parser.DefaultOptions())
			require.NoError(t, err)
			require.Len(t, tbl.Headers, 2)
			assert.Equal(t, "Clicks", tbl.Headers[1])
			assert.Equal(t, "5", tbl.Records[0]["Clicks"])
		})
	}
}

func TestReadCSV_ExplicitDelimiter(t *testing.T) {
	// With a forced comma the semicolon line is a single column.
	tbl, err := parser.ReadCSV("Spend;Clicks\n100;5", parser.Options{Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spend;Clicks"}, tbl.Headers)
}

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{"": 0, "auto": 0, ",": ',', ";": ';', "tab": '\t', "\t": '\t', "|": '|', "PIPE": '|'}
	for in, want := range cases {
		got, err := parser.ParseDelimiter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parser.ParseDelimiter(":")
	assert.ErrorIs(t, err, parser.ErrUnsupported)
}
