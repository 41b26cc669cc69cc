package pagelabel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailingLine(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single line", "12", "12"},
		{"last line wins", "Chapter one\nSome body text\n7", "7"},
		{"trailing blank lines", "body\n 8 \n\n  \n", "8"},
		{"windows newlines", "body\r\n9\r\n", "9"},
		{"empty", "", ""},
		{"whitespace only", " \n\t\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrailingLine(tt.text))
		})
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		candidate   string
		first, last int
		ok          bool
	}{
		{"1", 1, 1, true},
		{"042", 42, 42, true},
		{"4-5", 4, 5, true},
		{"10-11-12", 10, 12, true},
		{"", 0, 0, false},
		{"4-", 0, 0, false},
		{"-4", 0, 0, false},
		{"4--5", 0, 0, false},
		{"Page 4", 0, 0, false},
		{"4 5", 0, 0, false},
		{"iv", 0, 0, false},
		{"٣", 0, 0, false},
		{"+4", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			first, last, ok := ParseLabel(tt.candidate)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

func TestLabelsFor(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  []string
	}{
		{
			name:  "all numeric",
			pages: []string{"Introduction\n1", "More text\n2", "Closing words\n3\n"},
			want:  []string{"1", "2", "3"},
		},
		{
			name: "mixed front matter",
			pages: []string{
				"A Field Guide",
				"Copyright 2021 Example Press",
				"Contents\nChapter 1",
				"Chapter 1\nIt begins.\n1",
				"It continues.\n2",
			},
			want: []string{"1", "2", "3", "1", "2"},
		},
		{
			name:  "hyphenated span",
			pages: []string{"Start\n1", "Fold-out map\n2-3", "After\n4"},
			want:  []string{"1", "2-3", "4"},
		},
		{
			name:  "fully non-numeric",
			pages: []string{"Title", "Preface\nby the author", ""},
			want:  []string{"1", "2", "3"},
		},
		{
			name:  "malformed numbers fall back",
			pages: []string{"x\n4-", "y\nPage 2", "z\n3"},
			want:  []string{"1", "2", "3"},
		},
		{
			name:  "empty document",
			pages: []string{},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LabelsFor(tt.pages)
			require.Len(t, got, len(tt.pages))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcile(t *testing.T) {
	pages := Reconcile([]string{"Cover", "Body\n4-5", "Body\n6"})
	require.Len(t, pages, 3)

	assert.Equal(t, Page{Physical: 1, Label: "1", Printed: false, First: 1, Last: 1}, pages[0])
	assert.Equal(t, Page{Physical: 2, Label: "4-5", Printed: true, First: 4, Last: 5}, pages[1])
	assert.Equal(t, Page{Physical: 3, Label: "6", Printed: true, First: 6, Last: 6}, pages[2])
}

func TestDetectOffset(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  int
	}{
		{"no front matter", []string{"a\n1", "b\n2"}, 0},
		{"three front pages", []string{"Cover", "Title", "Contents", "a\n1", "b\n2"}, 3},
		{"nothing printed", []string{"Cover", "Title"}, 0},
		{"printed number ahead of file", []string{"a\n10", "b\n11"}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOffset(Reconcile(tt.pages)))
		})
	}
}

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Physical: 9, Label: "7", Printed: true, First: 7, Last: 7}, NewPage(9, "7"))
	assert.Equal(t, Page{Physical: 9, Label: "9", First: 9, Last: 9}, NewPage(9, "vii"))
}
