package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// selectionNamePattern captures the hole id and stage token from a
// sensor export filename, e.g. "P0012_S3_inj.xlsx" -> hole "P0012",
// stage 3. The order is the hole id's leading letter. Files whose
// names do not match are skipped by the scanner, never fatal.
var selectionNamePattern = regexp.MustCompile(`^([A-Za-z])(\d+)_S(\d+)`)

// Selection identifies one choosable (hole, order, stage) combination
// and the file backing it. The UI selectors are populated from a
// directory scan producing these tuples; the core pipeline only ever
// sees the resolved file.
type Selection struct {
	HoleID   string `json:"hole_id"`
	Order    string `json:"order"`
	Stage    int    `json:"stage"`
	Filename string `json:"filename"`
}

// StageLabel returns the stage in its filename form, e.g. "S3".
func (s Selection) StageLabel() string {
	return "S" + strconv.Itoa(s.Stage)
}

// ParseSelectionName extracts a Selection from a file's base name.
func ParseSelectionName(name string) (Selection, error) {
	base := filepath.Base(name)
	match := selectionNamePattern.FindStringSubmatch(base)
	if match == nil {
		return Selection{}, fmt.Errorf("filename %q does not match the hole/stage convention", base)
	}
	stage, err := strconv.Atoi(match[3])
	if err != nil {
		return Selection{}, fmt.Errorf("filename %q has an unparseable stage number: %w", base, err)
	}
	return Selection{
		HoleID:   match[1] + match[2],
		Order:    match[1],
		Stage:    stage,
		Filename: base,
	}, nil
}
