package deps

import "testing"

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "Shell", Command: "sh", Description: "always present"},
		{Name: "Ghost", Command: "detlab-no-such-binary"},
		{Name: "Blank", Command: "  "},
	})

	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("sh should resolve: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("missing binary should be reported: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("blank command should be reported: %+v", statuses[2])
	}
}

func TestAllRequiredAvailable(t *testing.T) {
	ok := []Status{
		{Name: "a", Available: true},
		{Name: "b", Optional: true, Available: false},
	}
	if !AllRequiredAvailable(ok) {
		t.Fatal("optional misses must not fail the check")
	}

	bad := []Status{{Name: "a", Available: false}}
	if AllRequiredAvailable(bad) {
		t.Fatal("required miss must fail the check")
	}
}
