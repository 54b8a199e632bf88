package web

import (
	"testing"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
)

func TestRunRegistry(t *testing.T) {
	g := newRunRegistry()
	run := g.start("r1", 4)

	ch, err := g.subscribe("r1")
	if err != nil {
		t.Fatal(err)
	}
	if p := <-ch; p.Phase != PhaseRunning || p.Total != 4 {
		t.Errorf("initial = %+v", p)
	}

	run.update(func(p *RunProgress) { p.Completed = 2 })
	if p := <-ch; p.Completed != 2 || p.Percent() != 50 {
		t.Errorf("update = %+v", p)
	}

	run.finish(&audit.Report{ID: "rep"}, nil)
	final := <-ch
	if final.Phase != PhaseComplete || final.ReportID != "rep" || final.Completed != 4 {
		t.Errorf("final = %+v", final)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after finish")
	}

	late, err := g.subscribe("r1")
	if err != nil {
		t.Fatal(err)
	}
	if p := <-late; p.Phase != PhaseComplete {
		t.Errorf("late subscriber got %+v", p)
	}
	if _, ok := <-late; ok {
		t.Error("late subscriber channel should be closed")
	}

	if _, err := g.subscribe("missing"); err == nil {
		t.Error("unknown run should fail")
	}
}

func TestRunProgressPercent(t *testing.T) {
	tests := []struct {
		p    RunProgress
		want int
	}{
		{RunProgress{Completed: 1, Total: 3}, 33},
		{RunProgress{Total: 0, Phase: PhaseRunning}, 0},
		{RunProgress{Total: 0, Phase: PhaseComplete}, 100},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}
