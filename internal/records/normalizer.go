// Package records 负责课程记录的规范化、表读写与多站点合并
package records

import (
	"regexp"
	"strings"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

// 币种代码
const (
	CurrencyPEN = "PEN"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// currencyMarkers 按表顺序匹配,先命中者优先
// 符号区分大小写,代码须为独立单词
var currencyMarkers = []struct {
	Code    string
	Symbols []string
	Token   *regexp.Regexp
}{
	{CurrencyPEN, []string{"S/"}, currencyToken(CurrencyPEN)},
	{CurrencyUSD, []string{"$"}, currencyToken(CurrencyUSD)},
	{CurrencyEUR, []string{"€"}, currencyToken(CurrencyEUR)},
}

func currencyToken(code string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}])` + code + `(?:[^\p{L}]|$)`)
}

// DetectCurrency 根据价格原文识别币种,无法识别时返回 N/A
func DetectCurrency(priceRaw string) string {
	if models.IsNotAvailable(priceRaw) {
		return models.NotAvailable
	}
	for _, c := range currencyMarkers {
		for _, sym := range c.Symbols {
			if strings.Contains(priceRaw, sym) {
				return c.Code
			}
		}
		if c.Token.MatchString(priceRaw) {
			return c.Code
		}
	}
	return models.NotAvailable
}

// Normalize 合并详情页字段与宣传册字段为规范记录
// 每列取第一个非占位值,详情页优先
func Normalize(sourceSite, pageURL string, htmlFields, pdfFields models.Fields) models.CourseRecord {
	rec := models.NewCourseRecord(sourceSite, pageURL)

	for _, col := range models.CanonicalColumns {
		switch col {
		case models.ColSourceSite, models.ColURL, models.ColPriceCurrency:
			continue
		case models.ColBrochureURL:
			rec = rec.WithField(col, htmlFields.Get(col))
			continue
		}
		rec = rec.WithField(col, firstAvailable(htmlFields.Get(col), pdfFields.Get(col)))
	}

	if models.IsNotAvailable(rec.URL) {
		rec = rec.WithField(models.ColURL, htmlFields.Get(models.ColURL))
	}
	return rec.WithField(models.ColPriceCurrency, DetectCurrency(rec.PriceRaw))
}

func firstAvailable(values ...string) string {
	for _, v := range values {
		if !models.IsNotAvailable(v) {
			return strings.TrimSpace(v)
		}
	}
	return models.NotAvailable
}
