package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table><tr><td class="pro">  Lechón
		<b>20kg</b>  </td></tr></table>`,
	))
	require.NoError(t, err)

	require.Equal(t, "Lechón 20kg", SelectionText(doc.Find("td.pro")))
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{in: " Subasta   Centro \n", expected: "Subasta Centro"},
		{in: "\tPorcino\t", expected: "Porcino"},
		{in: "", expected: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, CleanText(test.in))
	}
}
