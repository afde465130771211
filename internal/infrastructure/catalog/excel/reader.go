package excel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jmkang/policy-qa-agent/internal/core/domain"
)

// Reader loads the collected open-data policy catalog from an xlsx
// workbook. The first row must carry the Korean column headers; rows
// without a program name are skipped.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Read(path string) ([]domain.Policy, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	columns := indexHeader(rows[0])
	if _, ok := columns["사업명"]; !ok {
		return nil, fmt.Errorf("header row missing 사업명 column")
	}

	out := make([]domain.Policy, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		name := cell("사업명")
		if name == "" {
			continue
		}

		policy := domain.Policy{
			ProgramID:           parseInt(cell("사업번호")),
			Region:              cell("지역"),
			Category:            cell("분야"),
			ProgramName:         name,
			ProgramOverview:     cell("사업개요"),
			SupportDescription:  cell("지원내용"),
			SupportBudget:       parseInt(cell("지원예산")),
			SupportScale:        cell("지원규모"),
			SupervisingMinistry: cell("소관부처"),
			ApplyTarget:         cell("신청대상"),
			AnnouncementDate:    cell("공고일"),
			ApplicationMethod:   splitList(cell("신청방법")),
			ContactAgency:       splitList(cell("문의기관")),
			ContactNumber:       splitList(cell("문의전화")),
			RequiredDocuments:   splitList(cell("제출서류")),
			CollectedDate:       cell("수집일"),
		}
		out = append(out, policy)
	}
	return out, nil
}

func indexHeader(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, exists := out[name]; !exists {
			out[name] = i
		}
	}
	return out
}

func parseInt(raw string) int64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Budget cells sometimes carry decimals from spreadsheet math.
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return value
}

func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
