package service

import (
	"strings"
	"testing"
)

const csvSample = `title,description,difficulty,constraints,examples,test_cases,tags
Two Sum,"Find indices of two numbers adding to target.",easy,"2 <= n <= 10^4","[{""input"":""4\n2 7 11 15\n9"",""output"":""0 1""}]","[{""stdin"":""4\n2 7 11 15\n9"",""expected_stdout"":""0 1""},{""stdin"":""3\n3 2 4\n6"",""expected_stdout"":""1 2"",""is_hidden"":true}]","arrays,hash-map"
,"Missing title",easy,,,"[{""stdin"":""x"",""expected_stdout"":""y""}]",
Bad Difficulty,"desc",impossible,,,"[{""stdin"":""x"",""expected_stdout"":""y""}]",
No Cases,"desc",medium,,,,
`

func TestParseCSV(t *testing.T) {
	s := &AdminService{}

	preview, err := s.ParseCSV(strings.NewReader(csvSample))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if preview.TotalRows != 4 {
		t.Fatalf("total rows = %d, want 4", preview.TotalRows)
	}
	if preview.ValidRows != 1 {
		t.Errorf("valid rows = %d, want 1", preview.ValidRows)
	}
	if preview.TotalTestCases != 2 {
		t.Errorf("total test cases = %d, want 2", preview.TotalTestCases)
	}

	good := preview.Rows[0]
	if !good.Valid {
		t.Fatalf("row 1 invalid: %s", good.Error)
	}
	if good.Request.Title != "Two Sum" {
		t.Errorf("title = %q", good.Request.Title)
	}
	if len(good.Request.Tags) != 2 || good.Request.Tags[0] != "arrays" {
		t.Errorf("tags = %v, want [arrays hash-map]", good.Request.Tags)
	}
	if len(good.Request.TestCases) != 2 || !good.Request.TestCases[1].IsHidden {
		t.Errorf("test cases not parsed with hidden flag: %+v", good.Request.TestCases)
	}

	for i, wantErr := range []string{"", "title is required", "invalid difficulty", "at least one test case"} {
		if wantErr == "" {
			continue
		}
		if !strings.Contains(preview.Rows[i].Error, wantErr) {
			t.Errorf("row %d error = %q, want it to contain %q", i+1, preview.Rows[i].Error, wantErr)
		}
	}
}

func TestParseCSVRejectsBadHeader(t *testing.T) {
	s := &AdminService{}
	_, err := s.ParseCSV(strings.NewReader("name,difficulty\nfoo,easy\n"))
	if err == nil {
		t.Fatal("expected error for wrong header")
	}
}
