package utils

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

func TestTruncateDisplay(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"短文本", "Python", 10, "Python"},
		{"合并空白", "Power   BI\n Avanzado", 40, "Power BI Avanzado"},
		{"不限制宽度", "abcdef", 0, "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateDisplay(tt.in, tt.width); got != tt.want {
				t.Errorf("TruncateDisplay() = %q, want %q", got, tt.want)
			}
		})
	}

	long := TruncateDisplay(strings.Repeat("x", 50), 10)
	if !strings.HasSuffix(long, "…") {
		t.Errorf("截断文本应以省略号结尾: %q", long)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("Educación", 6); got != "Educac" {
		t.Errorf("TruncateRunes() = %q", got)
	}
	if got := TruncateRunes("ñandú", 10); got != "ñandú" {
		t.Errorf("未超长文本不应变化: %q", got)
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"Bearer令牌", "Bearer abc.def", "Bearer ***"},
		{"长密钥", "sk-1234567890abcdef", "sk-1***cdef"},
		{"短密钥", "secret", "***"},
		{"空值", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactSecret(tt.value); got != tt.want {
				t.Errorf("RedactSecret() = %q, want %q", got, tt.want)
			}
		})
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer token")
	headers.Set("User-Agent", "Bot/1.0")
	lines := RedactHeaders(headers)
	if len(lines) != 2 || lines[0] != "Authorization: Bearer ***" || lines[1] != "User-Agent: Bot/1.0" {
		t.Errorf("RedactHeaders() = %v", lines)
	}
}

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		value   string
		wantErr bool
	}{
		{"合法头部", "Accept-Language", "es-PE,es;q=0.9", false},
		{"禁止头部", "Host", "example.com", true},
		{"非法名称", "User Agent", "x", true},
		{"换行注入", "X-Test", "a\r\nb", true},
		{"超长值", "X-Long", strings.Repeat("a", MaxHeaderValueLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(tt.header, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReporter_GenerateSiteReport(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir)

	report := models.SiteReport{
		RunID:     "run-1",
		Site:      "WE Educación",
		Status:    models.RunStatusCompleted,
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Stats:     models.SiteStats{Records: 3},
	}

	path, err := reporter.GenerateSiteReport(report)
	if err != nil {
		t.Fatalf("GenerateSiteReport() error = %v", err)
	}
	if !strings.HasSuffix(path, "we_educaci_n_report.json") {
		t.Errorf("报告文件名不匹配: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded models.SiteReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if decoded.Stats.Records != 3 || decoded.Site != "WE Educación" {
		t.Errorf("报告内容不匹配: %+v", decoded)
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []string{"#", "站点"}, [][]string{{"1", "DMC"}, {"2", "Platzi"}})

	out := buf.String()
	if !strings.Contains(out, "DMC") || !strings.Contains(out, "Platzi") {
		t.Errorf("表格输出缺少内容: %s", out)
	}
}
