package contacts

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/xuri/excelize/v2"
)

// Contact is one row of the contacts sheet.
type Contact struct {
	Number string `json:"Number"`
	Name   string `json:"Name,omitempty"`
}

// LoadXLSX reads contacts from the first sheet of an .xlsx workbook. The
// first row is the header; "Number" and "Name" columns are matched
// case-insensitively and other columns are ignored. A missing file yields an
// empty list and os.ErrNotExist.
func LoadXLSX(path string) ([]Contact, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Contact{}, err
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Contact{}, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []Contact{}, nil
	}

	numberCol, nameCol := -1, -1
	for i, header := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(header)) {
		case "number":
			numberCol = i
		case "name":
			nameCol = i
		}
	}
	if numberCol < 0 {
		return nil, fmt.Errorf("%s: no Number column in sheet %s", path, sheets[0])
	}

	list := make([]Contact, 0, len(rows)-1)
	for _, row := range rows[1:] {
		number := cell(row, numberCol)
		name := cell(row, nameCol)
		if number == "" && name == "" {
			continue
		}
		list = append(list, Contact{Number: number, Name: name})
	}
	return list, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Store holds the current contact list. Lists are replaced wholesale and
// never mutated in place, so readers can keep a slice across reloads.
type Store struct {
	list atomic.Pointer[[]Contact]
}

func NewStore() *Store {
	s := &Store{}
	empty := []Contact{}
	s.list.Store(&empty)
	return s
}

func (s *Store) All() []Contact {
	return *s.list.Load()
}

func (s *Store) Len() int {
	return len(s.All())
}

func (s *Store) Replace(list []Contact) {
	if list == nil {
		list = []Contact{}
	}
	s.list.Store(&list)
}
