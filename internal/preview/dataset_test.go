package preview_test

import (
	"errors"
	"testing"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/preview"
)

func row() model.NotificationRow {
	return model.NotificationRow{
		Date:            "2024-03-04",
		Period:          "3",
		Class:           "701",
		Course:          "Math",
		Type:            "substitute",
		OriginalTeacher: "Chen",
		SubTeacher:      "Wang",
	}
}

func item(name string, email *string) model.PreviewItem {
	return model.PreviewItem{
		TeacherName: name,
		Email:       email,
		DataRows:    []model.NotificationRow{row()},
	}
}

func names(items []model.PreviewItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.TeacherName
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadSortsMissingEmailFirstStably(t *testing.T) {
	empty := ""
	d := preview.New()
	err := d.Load([]model.PreviewItem{
		item("A", model.StringPtr("a@school.edu")),
		item("B", nil),
		item("C", model.StringPtr("c@school.edu")),
		item("D", &empty),
		item("E", nil),
		item("F", model.StringPtr("f@school.edu")),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"B", "D", "E", "A", "C", "F"}
	if got := names(d.Items()); !equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	stats := d.Stats()
	if stats.Total != 6 || stats.Missing != 3 || stats.Ready() != 3 {
		t.Errorf("stats = %+v (ready %d), want total 6 missing 3", stats, stats.Ready())
	}
}

func TestLoadReplacesAndCopies(t *testing.T) {
	d := preview.New()
	input := []model.PreviewItem{item("Wang", model.StringPtr("w@school.edu"))}
	if err := d.Load(input); err != nil {
		t.Fatal(err)
	}
	d.ToggleExpand("Wang")

	*input[0].Email = "changed@school.edu"
	input[0].DataRows[0].Course = "Changed"
	got, _ := d.Find("Wang")
	if got.Address() != "w@school.edu" || got.DataRows[0].Course != "Math" {
		t.Error("Load must copy its input")
	}

	if err := d.Load([]model.PreviewItem{item("Li", nil)}); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1", d.Len())
	}
	if _, ok := d.Find("Wang"); ok {
		t.Error("Load should replace the previous items")
	}
	if _, ok := d.Expanded(); ok {
		t.Error("Load should collapse the expansion")
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	d := preview.New()
	err := d.Load([]model.PreviewItem{item("Wang", nil), item("Wang", nil)})
	if !errors.Is(err, preview.ErrDuplicateTeacher) {
		t.Errorf("duplicate err = %v, want ErrDuplicateTeacher", err)
	}

	err = d.Load([]model.PreviewItem{{TeacherName: "Li"}})
	if !errors.Is(err, preview.ErrNoRows) {
		t.Errorf("empty rows err = %v, want ErrNoRows", err)
	}
}

func TestToggleExpandIsExclusive(t *testing.T) {
	d := preview.New()
	if err := d.Load([]model.PreviewItem{item("A", nil), item("B", nil)}); err != nil {
		t.Fatal(err)
	}

	d.ToggleExpand("A")
	if !d.IsExpanded("A") {
		t.Fatal("A should be expanded")
	}

	d.ToggleExpand("B")
	if d.IsExpanded("A") || !d.IsExpanded("B") {
		t.Error("expanding B should collapse A")
	}

	d.ToggleExpand("B")
	if _, ok := d.Expanded(); ok {
		t.Error("toggling the expanded item should collapse it")
	}

	d.ToggleExpand("nobody")
	if _, ok := d.Expanded(); ok {
		t.Error("unknown names should be ignored")
	}
}

func TestEligibleAndVisible(t *testing.T) {
	d := preview.New()
	err := d.Load([]model.PreviewItem{
		item("Wang", model.StringPtr("w@school.edu")),
		item("Li", nil),
		item("Zhao", model.StringPtr("z@school.edu")),
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := names(d.EligibleForDispatch()); !equal(got, []string{"Wang", "Zhao"}) {
		t.Errorf("eligible = %v", got)
	}

	tests := []struct {
		filter preview.Filter
		want   []string
	}{
		{preview.FilterAll, []string{"Li", "Wang", "Zhao"}},
		{preview.FilterMissing, []string{"Li"}},
		{preview.FilterReady, []string{"Wang", "Zhao"}},
	}
	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			if got := names(d.Visible(tt.filter)); !equal(got, tt.want) {
				t.Errorf("Visible = %v, want %v", got, tt.want)
			}
		})
	}

	if preview.FilterReady.Next() != preview.FilterAll {
		t.Error("filters should wrap around")
	}
}

func TestSetEmail(t *testing.T) {
	d := preview.New()
	if err := d.Load([]model.PreviewItem{item("Li", nil), item("Wang", model.StringPtr("w@school.edu"))}); err != nil {
		t.Fatal(err)
	}

	if err := d.SetEmail("Li", "Li Ming <li@school.edu>"); err != nil {
		t.Fatalf("SetEmail: %v", err)
	}
	li, _ := d.Find("Li")
	if li.Address() != "li@school.edu" {
		t.Errorf("address = %q, want li@school.edu", li.Address())
	}
	if got := names(d.Items()); !equal(got, []string{"Li", "Wang"}) {
		t.Errorf("SetEmail should not reorder, got %v", got)
	}
	if s := d.Stats(); s.Missing != 0 {
		t.Errorf("missing = %d after fill-in, want 0", s.Missing)
	}

	if err := d.SetEmail("Wang", ""); err != nil {
		t.Fatalf("clearing email: %v", err)
	}
	if s := d.Stats(); s.Missing != 1 {
		t.Errorf("missing = %d after clear, want 1", s.Missing)
	}

	if err := d.SetEmail("Li", "not an address"); !errors.Is(err, preview.ErrInvalidAddress) {
		t.Errorf("invalid address err = %v", err)
	}
	if err := d.SetEmail("Nobody", "n@school.edu"); !errors.Is(err, preview.ErrUnknownTeacher) {
		t.Errorf("unknown teacher err = %v", err)
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	d := preview.New()
	if err := d.Load([]model.PreviewItem{item("Wang", model.StringPtr("w@school.edu"))}); err != nil {
		t.Fatal(err)
	}
	items := d.Items()
	items[0].Email = nil
	if s := d.Stats(); s.Missing != 0 {
		t.Error("mutating Items() result must not affect the dataset")
	}
}
