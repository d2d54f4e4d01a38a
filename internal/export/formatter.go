// Package export renders the current timestamp list as CSV or JSON text
// and derives the filenames used for exports and extracted clips.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clipmark/clipmark-agent/internal/marks"
)

// ErrNothingToExport is returned when there are no timestamps to render.
// Callers are expected to short-circuit earlier; the formatter refuses to
// emit a header-only artifact regardless.
var ErrNothingToExport = errors.New("no timestamps to export")

// CSVHeader is the fixed header row of the CSV export.
const CSVHeader = "video,jump_number,start_time,end_time,duration,output_file"

// Jump is one closed timestamp in the JSON export. Numbering is dense and
// 1-based over closed entries only.
type Jump struct {
	Number    int     `json:"number"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Duration  float64 `json:"duration"`
}

type jsonExport struct {
	VideoName string `json:"videoName"`
	Jumps     []Jump `json:"jumps"`
}

// ToCSV renders every entry, open ones included, one row per entry.
// Open entries carry N/A sentinels and "No jump detected" in place of an
// output file. clipExt is the container extension extracted clips use.
func ToCSV(videoName string, entries []marks.Timestamp, clipExt string) (string, error) {
	if len(entries) == 0 {
		return "", ErrNothingToExport
	}

	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')

	for i, entry := range entries {
		start := fmt.Sprintf("%.2fs", entry.StartTime)
		end := "N/A"
		duration := "N/A"
		outputFile := "No jump detected"
		if entry.EndTime != nil {
			end = fmt.Sprintf("%.2fs", *entry.EndTime)
			duration = fmt.Sprintf("%.2fs", entry.Duration())
			outputFile = ClipFileName(videoName, i+1, entry.StartTime, *entry.EndTime) + "." + clipExt
		}
		row := fmt.Sprintf("%s,%q,%s,%s,%s,%q", videoName, fmt.Sprint(i+1), start, end, duration, outputFile)
		b.WriteString(row)
		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}

	return b.String(), nil
}

// ToJSON renders only closed entries, renumbered densely after filtering.
func ToJSON(videoName string, entries []marks.Timestamp) (string, error) {
	if len(entries) == 0 {
		return "", ErrNothingToExport
	}

	out := jsonExport{
		VideoName: videoName,
		Jumps:     make([]Jump, 0, len(entries)),
	}
	for _, entry := range entries {
		if entry.EndTime == nil {
			continue
		}
		out.Jumps = append(out.Jumps, Jump{
			Number:    len(out.Jumps) + 1,
			StartTime: entry.StartTime,
			EndTime:   *entry.EndTime,
			Duration:  entry.Duration(),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
