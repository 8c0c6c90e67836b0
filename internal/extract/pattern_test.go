package extract

import (
	"context"
	"testing"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

const detailHTML = `<html><head>
<title>Especialización en Data Science | Academia</title>
<meta property="og:title" content="Especialización en Data Science">
<script>var price = "S/ 9999";</script>
</head><body>
<h1>  Especialización en
   Data Science </h1>
<div class="price"><del><span class="amount">S/ 1,200</span></del><ins><span class="amount">S/ 980</span></ins></div>
<ul>
  <li>Duración: 120 horas académicas</li>
  <li>Inicio de clases: 15 de marzo</li>
  <li>Modalidad: clases en vivo por Zoom</li>
</ul>
<div class="docente-card">Ing. María Torres</div>
</body></html>`

func TestPatternExtractor_ExtractPage(t *testing.T) {
	ex := NewPatternExtractor(nil)
	fields, err := ex.ExtractPage(context.Background(), Document{
		URL:     "https://academia.example.com/especializacion/data-science",
		Content: detailHTML,
	})
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{models.ColCourseName, "Especialización en Data Science"},
		{models.ColPriceRaw, "S/ 980"},
		{models.ColPriceOriginal, "S/ 1,200"},
		{models.ColDuration, "120 horas académicas"},
		{models.ColStartDate, "15 de marzo"},
		{models.ColModality, "En vivo"},
		{models.ColInstructor, "Ing. María Torres"},
		{models.ColCourseType, "Especialización"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := fields.Get(tt.key); got != tt.want {
				t.Errorf("%s不匹配: got %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	for _, key := range models.PageFieldKeys {
		if _, ok := fields[key]; !ok {
			t.Errorf("缺少字段: %s", key)
		}
	}
}

func TestPatternExtractor_SiteSelectors(t *testing.T) {
	html := `<html><body>
		<h1>Menú</h1>
		<div class="course-title" data-name="Bootcamp Full Stack">Bootcamp</div>
		<span class="costo">USD 350</span>
	</body></html>`

	ex := NewPatternExtractor(map[string][]string{
		models.ColCourseName: {".course-title@data-name"},
		models.ColPriceRaw:   {".costo"},
	})
	fields, err := ex.ExtractPage(context.Background(), Document{URL: "https://x.example.com/p/1", Content: html})
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	if got := fields.Get(models.ColCourseName); got != "Bootcamp Full Stack" {
		t.Errorf("站点选择器应优先: got %q", got)
	}
	if got := fields.Get(models.ColPriceRaw); got != "350 USD" && got != "USD 350" {
		t.Errorf("价格不匹配: got %q", got)
	}
	if got := fields.Get(models.ColCourseType); got != "Bootcamp" {
		t.Errorf("课程类型不匹配: got %q", got)
	}
}

func TestPatternExtractor_EmptyPage(t *testing.T) {
	ex := NewPatternExtractor(nil)
	fields, err := ex.ExtractPage(context.Background(), Document{URL: "https://x.example.com/", Content: "<html></html>"})
	if err != nil {
		t.Fatalf("空页面不应报错: %v", err)
	}
	for _, key := range models.PageFieldKeys {
		if fields.Get(key) != models.NotAvailable {
			t.Errorf("字段 %s 应为N/A: got %q", key, fields[key])
		}
	}
}

func TestPatternExtractor_ExtractBrochure(t *testing.T) {
	text := `PROGRAMA DE ESPECIALIZACIÓN
Duración total: 96 horas académicas
Inicio: 21 Enero 2025
Certificación
Certificado digital a nombre de la universidad
Metodología 100% práctica con casos reales
Docentes con más de 10 años de experiencia
Módulo 1: Fundamentos de Python
Módulo 2: Machine Learning
`
	ex := NewPatternExtractor(nil)
	fields, err := ex.ExtractBrochure(context.Background(), Document{URL: "x.pdf", Content: text})
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{models.ColDuration, "96 horas académicas"},
		{models.ColStartDate, "21 Enero 2025"},
		{models.ColCertification, "Certificación Certificado digital a nombre de la universidad"},
		{models.ColMethodology, "Metodología 100% práctica con casos reales"},
		{models.ColInstructor, "Docentes con más de 10 años de experiencia"},
		{models.ColContent, "Módulo 1: Fundamentos de Python; Módulo 2: Machine Learning"},
	}
	for _, tt := range tests {
		if got := fields.Get(tt.key); got != tt.want {
			t.Errorf("%s不匹配: got %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestDetectCourseType(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"Diplomado en Finanzas", "", "Diplomado"},
		{"Python desde cero", "https://x.com/bootcamp/python", "Bootcamp"},
		{"Maestría en IA", "", "Maestría"},
		{"Power BI", "https://x.com/producto/power-bi", ""},
	}
	for _, tt := range tests {
		if got := DetectCourseType(tt.name, tt.url); got != tt.want {
			t.Errorf("DetectCourseType(%q, %q) = %q, want %q", tt.name, tt.url, got, tt.want)
		}
	}
}
