package profiling

import (
	"testing"
	"time"
)

func TestFormatMs(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{4 * time.Millisecond, "4ms"},
		{4200 * time.Microsecond, "4.2ms"},
		{4260 * time.Microsecond, "4.2ms"},
		{1500 * time.Millisecond, "1500ms"},
	}
	for _, tt := range tests {
		if got := formatMs(tt.d); got != tt.want {
			t.Errorf("formatMs(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTopNAndPrefix(t *testing.T) {
	r := NewRecorder()
	r.Add("stage.density", 4200*time.Microsecond)
	r.Add("stage.mesh", 2*time.Millisecond)
	r.Add("stage.mesh", 100*time.Microsecond)
	r.Add("tick", 9*time.Millisecond)

	if got, want := r.TopN(2), "tick:9ms, stage.density:4.2ms"; got != want {
		t.Fatalf("TopN(2) = %q, want %q", got, want)
	}
	if got := r.TopN(10); got != "tick:9ms, stage.density:4.2ms, stage.mesh:2.1ms" {
		t.Fatalf("TopN(10) = %q", got)
	}
	if got := r.SumWithPrefix("stage."); got != 6300*time.Microsecond {
		t.Fatalf("SumWithPrefix = %v", got)
	}
	if got := r.Count("stage.mesh"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	r.ResetFrame()
	if len(r.Snapshot()) != 0 || r.TopN(3) != "" {
		t.Fatalf("ResetFrame left %v", r.Snapshot())
	}
}

func TestTrackRecords(t *testing.T) {
	r := NewRecorder()
	stop := r.Track("work")
	time.Sleep(time.Millisecond)
	stop()
	if got := r.Snapshot()["work"]; got < time.Millisecond {
		t.Fatalf("tracked %v, want at least 1ms", got)
	}

	var nilRec *Recorder
	nilRec.Track("ignored")()
}
