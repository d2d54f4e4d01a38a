package export

import "fmt"

// ClipFileName derives the output name of one extracted clip, without
// extension: {video}_jump_{n}_{start}s-{end}s with times at one decimal.
// It is computed once at submission time so later edits to the source
// timestamp do not rename the job.
func ClipFileName(videoName string, position int, start, end float64) string {
	return fmt.Sprintf("%s_jump_%d_%.1fs-%.1fs", videoName, position, start, end)
}

// CSVFileName is the name the CSV export is saved under.
func CSVFileName(videoName string) string {
	if videoName == "" {
		return "jump_detection_summary.csv"
	}
	return videoName + ".csv"
}

// JSONFileName is the name the JSON export is saved under.
func JSONFileName(videoName string) string {
	if videoName == "" {
		return "timestamps_jumps.json"
	}
	return videoName + "_jumps.json"
}
