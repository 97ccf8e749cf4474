package differ

import "testing"

func TestCompareSingleLineChange(t *testing.T) {
	from := []byte("x\ny\nz\n")
	to := []byte("x\nY\nz\n")

	result := Compare(from, to)

	if result.OldTotal != 3 || result.NewTotal != 3 {
		t.Fatalf("totals = %d/%d, want 3/3", result.OldTotal, result.NewTotal)
	}
	if len(result.Hunks) != 1 {
		t.Fatalf("hunk count = %d, want 1", len(result.Hunks))
	}

	want := []Line{
		{Tag: TagEqual, Content: "x"},
		{Tag: TagDelete, Content: "y"},
		{Tag: TagInsert, Content: "Y"},
		{Tag: TagEqual, Content: "z"},
	}
	got := result.Hunks[0].Lines
	if len(got) != len(want) {
		t.Fatalf("lines = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompareEmptyFromIsFullInsert(t *testing.T) {
	to := []byte("a\nb\n")
	result := Compare(nil, to)

	if result.OldTotal != 0 || result.NewTotal != 2 {
		t.Fatalf("totals = %d/%d, want 0/2", result.OldTotal, result.NewTotal)
	}
	for _, l := range result.Hunks[0].Lines {
		if l.Tag != TagInsert {
			t.Fatalf("expected all-insert hunk, got %+v", l)
		}
	}
}

func TestCompareIdenticalProducesNoHunks(t *testing.T) {
	data := []byte("same\ncontent\n")
	result := Compare(data, data)
	if len(result.Hunks) != 0 {
		t.Fatalf("expected no hunks for identical content, got %+v", result.Hunks)
	}
}

func TestCompareReplacesInvalidUTF8(t *testing.T) {
	from := []byte{0xff, 0xfe, '\n'}
	to := []byte("clean\n")
	result := Compare(from, to)
	if result.OldTotal != 1 {
		t.Fatalf("OldTotal = %d, want 1", result.OldTotal)
	}
}
