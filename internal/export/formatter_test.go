package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/clipmark/clipmark-agent/internal/marks"
)

func closed(start, end float64) marks.Timestamp {
	return marks.Timestamp{ID: marks.NewID(), StartTime: start, EndTime: &end}
}

func open(start float64) marks.Timestamp {
	return marks.Timestamp{ID: marks.NewID(), StartTime: start}
}

func TestToCSV_HeaderAndRows(t *testing.T) {
	entries := []marks.Timestamp{closed(0, 2), closed(5, 7.5)}

	out, err := ToCSV("demo", entries, "mp4")
	if err != nil {
		t.Fatalf("ToCSV() error = %v", err)
	}

	lines := strings.Split(out, "\n")
	if lines[0] != "video,jump_number,start_time,end_time,duration,output_file" {
		t.Fatalf("header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("line count = %d, want 3", len(lines))
	}
	if lines[1] != `demo,"1",0.00s,2.00s,2.00s,"demo_jump_1_0.0s-2.0s.mp4"` {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != `demo,"2",5.00s,7.50s,2.50s,"demo_jump_2_5.0s-7.5s.mp4"` {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestToCSV_OpenEntrySentinels(t *testing.T) {
	out, err := ToCSV("demo", []marks.Timestamp{open(3)}, "webm")
	if err != nil {
		t.Fatalf("ToCSV() error = %v", err)
	}

	row := strings.Split(out, "\n")[1]
	if !strings.Contains(row, "N/A") {
		t.Errorf("open entry row missing N/A sentinel: %q", row)
	}
	if !strings.Contains(row, `"No jump detected"`) {
		t.Errorf("open entry row missing output placeholder: %q", row)
	}
}

func TestToCSV_Empty(t *testing.T) {
	if _, err := ToCSV("demo", nil, "mp4"); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("ToCSV() empty error = %v, want ErrNothingToExport", err)
	}
}

func TestToJSON_DenseNumberingOverClosedOnly(t *testing.T) {
	entries := []marks.Timestamp{open(1), closed(2, 4), closed(6, 9)}

	out, err := ToJSON("demo", entries)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed struct {
		VideoName string `json:"videoName"`
		Jumps     []Jump `json:"jumps"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if parsed.VideoName != "demo" {
		t.Errorf("videoName = %q, want demo", parsed.VideoName)
	}
	if len(parsed.Jumps) != 2 {
		t.Fatalf("jumps len = %d, want 2 (open entry excluded)", len(parsed.Jumps))
	}
	if parsed.Jumps[0].Number != 1 || parsed.Jumps[0].StartTime != 2 {
		t.Errorf("jump 1 = %+v, want number 1 for range (2,4)", parsed.Jumps[0])
	}
	if parsed.Jumps[1].Number != 2 || parsed.Jumps[1].StartTime != 6 {
		t.Errorf("jump 2 = %+v, want number 2 for range (6,9)", parsed.Jumps[1])
	}
	if parsed.Jumps[1].Duration != 3 {
		t.Errorf("jump 2 duration = %f, want 3", parsed.Jumps[1].Duration)
	}
}

func TestToJSON_OnlyOpenEntries(t *testing.T) {
	out, err := ToJSON("demo", []marks.Timestamp{open(1)})
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(out, `"jumps": []`) {
		t.Errorf("expected empty jumps array, got %q", out)
	}
}

func TestToJSON_Empty(t *testing.T) {
	if _, err := ToJSON("demo", nil); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("ToJSON() empty error = %v, want ErrNothingToExport", err)
	}
}

func TestClipFileName(t *testing.T) {
	tests := []struct {
		name     string
		video    string
		position int
		start    float64
		end      float64
		want     string
	}{
		{name: "whole seconds", video: "demo", position: 1, start: 0, end: 2, want: "demo_jump_1_0.0s-2.0s"},
		{name: "later position", video: "demo", position: 2, start: 5, end: 7, want: "demo_jump_2_5.0s-7.0s"},
		{name: "fractional", video: "run", position: 3, start: 1.25, end: 3.75, want: "run_jump_3_1.2s-3.8s"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClipFileName(tc.video, tc.position, tc.start, tc.end)
			if got != tc.want {
				t.Fatalf("ClipFileName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExportFileNames(t *testing.T) {
	if got := CSVFileName("demo"); got != "demo.csv" {
		t.Errorf("CSVFileName(demo) = %q", got)
	}
	if got := CSVFileName(""); got != "jump_detection_summary.csv" {
		t.Errorf("CSVFileName(empty) = %q", got)
	}
	if got := JSONFileName("demo"); got != "demo_jumps.json" {
		t.Errorf("JSONFileName(demo) = %q", got)
	}
	if got := JSONFileName(""); got != "timestamps_jumps.json" {
		t.Errorf("JSONFileName(empty) = %q", got)
	}
}
