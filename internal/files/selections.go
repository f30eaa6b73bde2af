package files

import (
	"log/slog"
	"sort"

	"groutflow/pkg/contracts/domain"
)

// Selections scans a directory for injection log spreadsheets and
// derives the hole/stage tuples the UI offers. Files whose names do
// not follow the hole naming convention are logged and skipped, never
// fatal: one stray file must not empty the selector.
func (d *Discovery) Selections(dir string) ([]domain.Selection, error) {
	found, err := d.FindSpreadsheetFiles(dir)
	if err != nil {
		return nil, err
	}

	var selections []domain.Selection
	for _, file := range found {
		sel, err := domain.ParseSelectionName(file.Name)
		if err != nil {
			slog.Warn("skipping spreadsheet with unrecognized name",
				slog.String("file", file.Name),
				slog.String("error", err.Error()))
			continue
		}
		selections = append(selections, sel)
	}

	sort.Slice(selections, func(i, j int) bool {
		if selections[i].HoleID != selections[j].HoleID {
			return selections[i].HoleID < selections[j].HoleID
		}
		return selections[i].Stage < selections[j].Stage
	})

	return selections, nil
}

// FindSelection resolves one hole/stage pair back to its source file.
// The second return value reports whether the pair exists in the
// directory.
func (d *Discovery) FindSelection(dir, holeID string, stage int) (domain.Selection, string, bool) {
	found, err := d.FindSpreadsheetFiles(dir)
	if err != nil {
		return domain.Selection{}, "", false
	}

	for _, file := range found {
		sel, err := domain.ParseSelectionName(file.Name)
		if err != nil {
			continue
		}
		if sel.HoleID == holeID && sel.Stage == stage {
			return sel, file.Path, true
		}
	}
	return domain.Selection{}, "", false
}
