package compare

import (
	"strings"
	"testing"
)

func TestParseFilterList(t *testing.T) {
	input := `
# This is a comment
!cthulhu
azathoth

!nyarlathotep
`
	list, err := ParseFilterList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFilterList() error = %v", err)
	}
	if got, want := len(list.Allow), 1; got != want {
		t.Fatalf("len(Allow) = %d, want %d", got, want)
	}
	if got, want := len(list.Reject), 2; got != want {
		t.Fatalf("len(Reject) = %d, want %d", got, want)
	}
}

func TestFilterListAuthorize(t *testing.T) {
	list := FilterList{
		Allow:  []string{"azathoth"},
		Reject: []string{"cthulhu", "nyarlathotep"},
	}
	tests := []struct {
		name string
		want bool
	}{
		{"Filecoin.AzathothRises", true},
		{"Filecoin.CthulhuAwakens", false},
		{"Filecoin.SummonNyarlathotep", false},
		{"Filecoin.ChainHead", false},
	}
	for _, tt := range tests {
		// Matching is case sensitive, mirror the fixture's casing.
		name := strings.ToLower(tt.name)
		if got := list.Authorize(name); got != tt.want {
			t.Errorf("Authorize(%q) = %v, want %v", name, got, tt.want)
		}
	}
}

func TestFilterListEmptyAllowsEverything(t *testing.T) {
	var list FilterList
	if !list.Authorize("Filecoin.ChainHead") {
		t.Fatal("empty list rejected a method")
	}
}

func TestFilterListRejectWins(t *testing.T) {
	list := FilterList{
		Allow:  []string{"State"},
		Reject: []string{"StateCall"},
	}
	if list.Authorize("Filecoin.StateCall") {
		t.Fatal("reject rule did not override allow rule")
	}
	if !list.Authorize("Filecoin.StateGetActor") {
		t.Fatal("allow rule stopped matching")
	}
}

func TestNewFilterListInline(t *testing.T) {
	if list := NewFilterList("Eth"); !list.Authorize("Filecoin.EthChainId") || list.Authorize("Filecoin.ChainHead") {
		t.Fatal("inline allow rule misbehaved")
	}
	if list := NewFilterList("!Eth"); list.Authorize("Filecoin.EthChainId") || !list.Authorize("Filecoin.ChainHead") {
		t.Fatal("inline reject rule misbehaved")
	}
}
