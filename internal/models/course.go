package models

import (
	"strings"
)

const (
	// NotAvailable 未知字段的占位值,记录中任何字段都不会为空
	NotAvailable = "N/A"

	// BrochureViaForm 通过表单下载宣传册时 brochure_url 的取值
	BrochureViaForm = "Downloaded via Form"

	// DefaultCourseType 模型提取未返回课程类型时使用的默认值
	DefaultCourseType = "Curso"
)

// 规范列名
const (
	ColSourceSite    = "source_site"
	ColCourseName    = "course_name"
	ColCourseType    = "course_type"
	ColPriceRaw      = "price_raw"
	ColPriceCurrency = "price_currency"
	ColPriceOriginal = "price_original"
	ColDuration      = "duration"
	ColStartDate     = "start_date"
	ColInstructor    = "instructor"
	ColModality      = "modality"
	ColCertification = "certification"
	ColMethodology   = "methodology"
	ColContent       = "content"
	ColURL           = "url"
	ColBrochureURL   = "brochure_url"
)

// CanonicalColumns 主表的固定列顺序
var CanonicalColumns = []string{
	ColSourceSite,
	ColCourseName,
	ColCourseType,
	ColPriceRaw,
	ColPriceCurrency,
	ColPriceOriginal,
	ColDuration,
	ColStartDate,
	ColInstructor,
	ColModality,
	ColCertification,
	ColMethodology,
	ColContent,
	ColURL,
	ColBrochureURL,
}

// PageFieldKeys 详情页提取器返回的字段
var PageFieldKeys = []string{
	ColCourseName,
	ColPriceRaw,
	ColPriceOriginal,
	ColDuration,
	ColStartDate,
	ColCourseType,
	ColInstructor,
	ColModality,
}

// BrochureFieldKeys 宣传册提取器返回的字段
var BrochureFieldKeys = []string{
	ColDuration,
	ColStartDate,
	ColCertification,
	ColMethodology,
	ColInstructor,
	ColContent,
}

// Fields 提取器输出的字段映射
type Fields map[string]string

// Get 读取字段,缺失或空白时返回 N/A
func (f Fields) Get(key string) string {
	if f == nil {
		return NotAvailable
	}
	v := strings.TrimSpace(f[key])
	if IsNotAvailable(v) {
		return NotAvailable
	}
	return v
}

// Set 设置字段
func (f Fields) Set(key, value string) {
	f[key] = strings.TrimSpace(value)
}

// IsNotAvailable 判断值是否等价于占位值
func IsNotAvailable(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, NotAvailable)
}

// CourseRecord 规范化后的课程记录
type CourseRecord struct {
	SourceSite    string `json:"source_site"`
	CourseName    string `json:"course_name"`
	CourseType    string `json:"course_type"`
	PriceRaw      string `json:"price_raw"`
	PriceCurrency string `json:"price_currency"`
	PriceOriginal string `json:"price_original"`
	Duration      string `json:"duration"`
	StartDate     string `json:"start_date"`
	Instructor    string `json:"instructor"`
	Modality      string `json:"modality"`
	Certification string `json:"certification"`
	Methodology   string `json:"methodology"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	BrochureURL   string `json:"brochure_url"`
}

// NewCourseRecord 创建所有字段均为 N/A 的记录
// 来源站点在创建时确定,之后不再修改
func NewCourseRecord(sourceSite, pageURL string) CourseRecord {
	rec := CourseRecord{}
	for _, col := range CanonicalColumns {
		rec.set(col, NotAvailable)
	}
	rec.SourceSite = sourceSite
	if !IsNotAvailable(pageURL) {
		rec.URL = strings.TrimSpace(pageURL)
	}
	return rec
}

// Values 按规范列顺序返回字段值
func (r CourseRecord) Values() []string {
	values := make([]string, 0, len(CanonicalColumns))
	for _, col := range CanonicalColumns {
		values = append(values, r.Get(col))
	}
	return values
}

// Map 以列名为键返回字段值
func (r CourseRecord) Map() map[string]string {
	m := make(map[string]string, len(CanonicalColumns))
	for _, col := range CanonicalColumns {
		m[col] = r.Get(col)
	}
	return m
}

// Get 按列名读取字段
func (r CourseRecord) Get(col string) string {
	if p := r.field(col); p != nil {
		return *p
	}
	return NotAvailable
}

// set 按列名写入字段,未知列忽略
func (r *CourseRecord) set(col, value string) {
	if p := r.field(col); p != nil {
		*p = value
	}
}

func (r *CourseRecord) field(col string) *string {
	switch col {
	case ColSourceSite:
		return &r.SourceSite
	case ColCourseName:
		return &r.CourseName
	case ColCourseType:
		return &r.CourseType
	case ColPriceRaw:
		return &r.PriceRaw
	case ColPriceCurrency:
		return &r.PriceCurrency
	case ColPriceOriginal:
		return &r.PriceOriginal
	case ColDuration:
		return &r.Duration
	case ColStartDate:
		return &r.StartDate
	case ColInstructor:
		return &r.Instructor
	case ColModality:
		return &r.Modality
	case ColCertification:
		return &r.Certification
	case ColMethodology:
		return &r.Methodology
	case ColContent:
		return &r.Content
	case ColURL:
		return &r.URL
	case ColBrochureURL:
		return &r.BrochureURL
	}
	return nil
}

// WithField 返回设置了指定列的新记录
// source_site 不可修改,对其调用将被忽略
func (r CourseRecord) WithField(col, value string) CourseRecord {
	if col == ColSourceSite {
		return r
	}
	value = strings.TrimSpace(value)
	if IsNotAvailable(value) {
		value = NotAvailable
	}
	r.set(col, value)
	return r
}
