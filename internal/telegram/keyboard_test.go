package telegram

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total   int
		perPage int
		want    int
	}{
		{0, 5, 1},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{11, 5, 3},
		{10, 0, 1},
	}

	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.perPage); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.perPage, got, tt.want)
		}
	}
}

func TestPaginationRow(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		total     int
		wantLen   int
		wantFirst string
		wantLast  string
	}{
		{"single page", 1, 1, 1, "cur", "cur"},
		{"first of many", 1, 3, 2, "cur", "list_2"},
		{"middle", 2, 3, 3, "list_1", "list_3"},
		{"last", 3, 3, 2, "list_2", "cur"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := PaginationRow(tt.page, tt.total, "list")
			if len(row) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(row), tt.wantLen)
			}
			if row[0].CallbackData != tt.wantFirst {
				t.Errorf("first callback = %q, want %q", row[0].CallbackData, tt.wantFirst)
			}
			if row[len(row)-1].CallbackData != tt.wantLast {
				t.Errorf("last callback = %q, want %q", row[len(row)-1].CallbackData, tt.wantLast)
			}
		})
	}
}
