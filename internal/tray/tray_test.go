package tray

import "testing"

func TestAssignIDsDepthFirst(t *testing.T) {
	var got []string
	record := func(s string) func() { return func() { got = append(got, s) } }

	items := []MenuItem{
		{Label: "Settings...", Action: record("settings")},
		Separator(),
		{Label: "Brightness", Children: []MenuItem{
			{Label: "100%", Action: record("100")},
			{Label: "90%", Action: record("90")},
		}},
		{Label: "Disabled"},
		{Label: "Reset to 100%", Action: record("reset")},
	}
	actions := assignIDs(items)
	if len(actions) != 4 {
		t.Fatalf("actions = %d, want 4", len(actions))
	}
	for id := uint32(firstCommandID); id < firstCommandID+4; id++ {
		actions[id]()
	}
	want := []string{"settings", "100", "90", "reset"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
