package records

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"索尔", "S/480", CurrencyPEN},
		{"索尔带点", "S/. 1,200", CurrencyPEN},
		{"PEN代码", "350 PEN", CurrencyPEN},
		{"美元符号", "$200", CurrencyUSD},
		{"美元代码", "USD 99", CurrencyUSD},
		{"欧元符号", "€150", CurrencyEUR},
		{"欧元代码", "150 eur", CurrencyEUR},
		{"免费", "Gratis", models.NotAvailable},
		{"占位值", "N/A", models.NotAvailable},
		{"空值", "", models.NotAvailable},
		{"表顺序优先", "S/ 300 o $80", CurrencyPEN},
		{"代码紧邻数字", "USD99", CurrencyUSD},
		{"单词包含PEN", "Pendiente", models.NotAvailable},
		{"单词包含pen", "Open enrollment", models.NotAvailable},
		{"单词包含s与斜杠", "Suspendido", models.NotAvailable},
		{"单词包含eur", "Neuronal 120 horas", models.NotAvailable},
		{"单词包含usd", "Pausdo", models.NotAvailable},
		{"小写s斜杠", "cursos/precio 300", models.NotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCurrency(tt.price); got != tt.want {
				t.Errorf("DetectCurrency(%q) = %q, want %q", tt.price, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("详情页优先", func(t *testing.T) {
		html := models.Fields{
			models.ColCourseName: "Bootcamp Python",
			models.ColDuration:   "8 semanas",
			models.ColPriceRaw:   "S/480",
		}
		pdf := models.Fields{models.ColDuration: "120 horas"}
		rec := Normalize("Site A", "https://a.example.com/c/1", html, pdf)
		if rec.Duration != "8 semanas" {
			t.Errorf("duration不匹配: got %q, want %q", rec.Duration, "8 semanas")
		}
		if rec.PriceCurrency != CurrencyPEN {
			t.Errorf("price_currency不匹配: got %q", rec.PriceCurrency)
		}
	})

	t.Run("占位值回退到宣传册", func(t *testing.T) {
		html := models.Fields{models.ColDuration: "N/A", models.ColInstructor: "  "}
		pdf := models.Fields{
			models.ColDuration:      "120 horas",
			models.ColInstructor:    " Ana Ruiz ",
			models.ColCertification: "Certificado digital",
			models.ColContent:       "Módulo 1; Módulo 2",
		}
		rec := Normalize("Site A", "https://a.example.com/c/2", html, pdf)
		if rec.Duration != "120 horas" {
			t.Errorf("duration不匹配: got %q", rec.Duration)
		}
		if rec.Instructor != "Ana Ruiz" {
			t.Errorf("instructor应去除空白: got %q", rec.Instructor)
		}
		if rec.Certification != "Certificado digital" || rec.Content != "Módulo 1; Módulo 2" {
			t.Errorf("宣传册专有字段未合并: %+v", rec)
		}
	})

	t.Run("所有字段非空", func(t *testing.T) {
		rec := Normalize("Site B", "https://b.example.com/x", nil, nil)
		for i, v := range rec.Values() {
			if v == "" {
				t.Errorf("列 %s 为空", models.CanonicalColumns[i])
			}
		}
		if rec.SourceSite != "Site B" || rec.URL != "https://b.example.com/x" {
			t.Errorf("来源或URL不匹配: %+v", rec)
		}
		if rec.PriceCurrency != models.NotAvailable || rec.BrochureURL != models.NotAvailable {
			t.Errorf("缺失字段应为N/A: %+v", rec)
		}
	})

	t.Run("宣传册URL取自详情页", func(t *testing.T) {
		html := models.Fields{models.ColBrochureURL: models.BrochureViaForm}
		pdf := models.Fields{models.ColBrochureURL: "https://ignored.example.com/b.pdf"}
		rec := Normalize("Site C", "https://c.example.com/1", html, pdf)
		if rec.BrochureURL != models.BrochureViaForm {
			t.Errorf("brochure_url不匹配: got %q", rec.BrochureURL)
		}
	})
}

func TestWriteAndReadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "site_database.csv")

	recs := []models.CourseRecord{
		Normalize("Site A", "https://a.example.com/1", models.Fields{models.ColCourseName: "Curso, con coma", models.ColContent: "línea 1\nlínea 2"}, nil),
		Normalize("Site A", "https://a.example.com/2", models.Fields{models.ColCourseName: `Curso "Pro"`}, nil),
	}
	if err := WriteRecords(path, recs); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Error("文件应以UTF-8 BOM开头")
	}

	table, err := ReadTable(path)
	if err != nil {
		t.Fatalf("读取表失败: %v", err)
	}
	if strings.Join(table.Columns, ",") != strings.Join(models.CanonicalColumns, ",") {
		t.Errorf("表头不匹配: got %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("行数不匹配: got %d, want 2", len(table.Rows))
	}
	if got := table.Rows[0][indexOf(models.CanonicalColumns, models.ColCourseName)]; got != "Curso, con coma" {
		t.Errorf("course_name不匹配: got %q", got)
	}
	if got := table.Rows[0][indexOf(models.CanonicalColumns, models.ColContent)]; got != "línea 1\nlínea 2" {
		t.Errorf("多行内容不匹配: got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "nested", "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("不应残留临时文件: %v", matches)
	}
}

func TestWriteTable_PersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := WriteTable(filepath.Join(blocker, "out.csv"), Table{Columns: []string{"a"}})
	var pe *models.PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("期望PersistenceError, got %v", err)
	}
}

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConsolidate(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a_database.csv")
	b := filepath.Join(dir, "b_database.csv")
	empty := filepath.Join(dir, "empty_database.csv")

	writeCSV(t, a, "\ufeffsource_site,course_name,url,extra\n"+
		"Site A,Python,https://x.example.com/1,ignored\n"+
		",Java,https://x.example.com/2,\n")
	writeCSV(t, b, "course_name,url,price_raw\n"+
		"Python duplicado,https://x.example.com/1,$10\n"+
		"Go,https://y.example.com/3,\n")
	writeCSV(t, empty, "source_site,course_name,url\n")

	master, err := Consolidate([]SiteTable{
		{Site: "Site A", Path: a},
		{Site: "Missing", Path: filepath.Join(dir, "missing_database.csv")},
		{Site: "Empty", Path: empty},
		{Site: "Site B", Path: b},
	})
	if err != nil {
		t.Fatalf("合并失败: %v", err)
	}

	t.Run("规范列", func(t *testing.T) {
		if strings.Join(master.Columns, ",") != strings.Join(models.CanonicalColumns, ",") {
			t.Errorf("列不匹配: got %v", master.Columns)
		}
		for _, row := range master.Rows {
			if len(row) != len(models.CanonicalColumns) {
				t.Fatalf("行长度不匹配: %v", row)
			}
			for i, v := range row {
				if v == "" {
					t.Errorf("列 %s 为空", master.Columns[i])
				}
			}
		}
	})

	t.Run("按url去重保留先出现的行", func(t *testing.T) {
		if master.InputRows != 4 {
			t.Errorf("输入行数不匹配: got %d, want 4", master.InputRows)
		}
		if master.Len() != 3 {
			t.Fatalf("行数不匹配: got %d, want 3", master.Len())
		}
		first := master.Rows[0]
		if first[siteColumn] != "Site A" || first[indexOf(master.Columns, models.ColCourseName)] != "Python" {
			t.Errorf("应保留较早的行: %v", first)
		}
		seen := map[string]bool{}
		for _, row := range master.Rows {
			if seen[row[urlColumn]] {
				t.Errorf("url重复: %s", row[urlColumn])
			}
			seen[row[urlColumn]] = true
		}
	})

	t.Run("补全来源站点", func(t *testing.T) {
		if got := master.Rows[1][siteColumn]; got != "Site A" {
			t.Errorf("空来源应补为配置站点: got %q", got)
		}
		if got := master.Rows[2][siteColumn]; got != "Site B" {
			t.Errorf("缺失来源列应补为配置站点: got %q", got)
		}
		if got := master.Rows[2][indexOf(master.Columns, models.ColPriceRaw)]; got != models.NotAvailable {
			t.Errorf("空单元格应为N/A: got %q", got)
		}
	})

	t.Run("统计与跳过", func(t *testing.T) {
		want := []SiteCount{{"Site A", 2}, {"Site B", 1}}
		if len(master.SiteCounts) != len(want) {
			t.Fatalf("站点统计不匹配: got %v", master.SiteCounts)
		}
		for i := range want {
			if master.SiteCounts[i] != want[i] {
				t.Errorf("站点统计不匹配: got %v, want %v", master.SiteCounts[i], want[i])
			}
		}
		if strings.Join(master.Skipped, ",") != "Missing,Empty" {
			t.Errorf("跳过的站点不匹配: got %v", master.Skipped)
		}
	})
}

func TestMasterTable_Write(t *testing.T) {
	dir := t.TempDir()
	master := &MasterTable{
		Columns: models.CanonicalColumns,
		Rows:    [][]string{models.NewCourseRecord("Site A", "https://x.example.com/1").Values()},
	}
	now := time.Date(2025, 1, 21, 9, 30, 5, 0, time.Local)

	first, err := master.Write(dir, now)
	if err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if filepath.Base(first) != "MASTER_courses_database_20250121_093005.csv" {
		t.Errorf("文件名不匹配: got %s", filepath.Base(first))
	}

	second, err := master.Write(dir, now)
	if err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	if filepath.Base(second) != "MASTER_courses_database_20250121_093005_1.csv" {
		t.Errorf("同名时应追加序号: got %s", filepath.Base(second))
	}

	table, err := ReadTable(first)
	if err != nil || len(table.Rows) != 1 {
		t.Errorf("原文件不应被覆盖: rows=%d err=%v", len(table.Rows), err)
	}
}
