package excel

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestReadParsesCatalogRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"사업번호", "지역", "분야", "사업명", "사업개요", "지원내용", "지원예산", "지원규모", "소관부처", "신청대상", "공고일", "신청방법", "문의기관", "문의전화", "제출서류", "수집일"},
		{"1001", "서울", "창업", "창업 도약 패키지", "성장기 창업기업 지원", "사업화 자금", "1,000,000,000", "50개사", "중소벤처기업부", "창업 3~7년차 기업", "2026-07-15", "온라인 신청;방문 접수", "창업진흥원", "02-000-0000", "사업자등록증, 사업계획서", "2026-08-01"},
		{"", "", "", "", "", "", "", "", "", "", "", "", "", "", "", ""},
		{"1002", "부산", "수출", "수출 바우처", "수출 지원", "바우처 지급", "500000000", "", "산업통상자원부", "중소기업", "2026-08-20", "온라인 신청", "", "", "", "2026-08-25"},
	})

	policies, err := NewReader().Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies (blank row skipped), got %d", len(policies))
	}

	first := policies[0]
	if first.ProgramID != 1001 || first.ProgramName != "창업 도약 패키지" || first.Region != "서울" {
		t.Fatalf("unexpected first policy: %+v", first)
	}
	if first.SupportBudget != 1000000000 {
		t.Fatalf("expected comma-grouped budget parsed, got %d", first.SupportBudget)
	}
	if len(first.ApplicationMethod) != 2 || first.ApplicationMethod[1] != "방문 접수" {
		t.Fatalf("multi-value cell not split: %+v", first.ApplicationMethod)
	}
	if len(first.RequiredDocuments) != 2 {
		t.Fatalf("expected comma-split documents, got %+v", first.RequiredDocuments)
	}

	second := policies[1]
	if second.Region != "부산" || second.SupportBudget != 500000000 {
		t.Fatalf("unexpected second policy: %+v", second)
	}
	if len(second.ContactAgency) != 0 {
		t.Fatalf("expected empty list for blank cell, got %+v", second.ContactAgency)
	}
}

func TestReadRejectsMissingNameColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"지역", "분야"},
		{"서울", "창업"},
	})

	if _, err := NewReader().Read(path); err == nil {
		t.Fatal("expected error for missing 사업명 header")
	}
}

func TestReadEmptyWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"사업명"},
	})

	policies, err := NewReader().Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(policies) != 0 {
		t.Fatalf("expected no policies, got %d", len(policies))
	}
}
