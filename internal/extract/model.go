package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1"
)

const pagePrompt = `You are a web scraping assistant. Extract course information from the provided HTML.

Extract the following fields:
1. course_name: The main course/program title
2. price_raw: Current price (with currency symbol, e.g., "S/480" or "$200")
3. price_original: Original/regular price if shown (often crossed out or labeled "Antes")
4. duration: Course duration (e.g., "120 horas", "8 semanas")
5. start_date: When the course starts
6. course_type: Type of program (Bootcamp, Especialización, Curso, Diplomado, etc.)
7. instructor: Instructor name if visible
8. modality: Online, Presencial, Híbrido, En vivo, etc.

Return ONLY raw JSON with these keys. Use "N/A" if a field is not found.

URL: %s

HTML (truncated):
%s`

const brochurePrompt = `You are a data extraction assistant. Extract the following information from the provided course brochure text:
1. duration (in academic hours or similar)
2. start_date (look for "Inicio", "Start", specific dates like "21 Enero")
3. certification (how many and what certificates)
4. methodology (brief summary)
5. instructor (instructor experience, brief summary)
6. content (brief summary of modules/topics)

Return ONLY raw JSON with keys: duration, start_date, certification, methodology, instructor, content.
If a field is not found, use "N/A".

Brochure Text:
%s`

// ModelOptions 模型提取器参数
type ModelOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxHTML     int
	MaxBrochure int
}

// ModelExtractor 调用对话接口的提取器
type ModelExtractor struct {
	client *resty.Client
	opts   ModelOptions
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewModelExtractor 创建模型提取器
func NewModelExtractor(opts ModelOptions) *ModelExtractor {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxHTML <= 0 {
		opts.MaxHTML = DefaultMaxHTML
	}
	if opts.MaxBrochure <= 0 {
		opts.MaxBrochure = DefaultMaxBrochure
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetAuthToken(opts.APIKey)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetRetryCount(2)
	client.SetRetryWaitTime(2 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil {
			return false
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	return &ModelExtractor{client: client, opts: opts}
}

func (m *ModelExtractor) Name() string { return KindModel }

// ExtractPage 从详情页HTML提取字段
func (m *ModelExtractor) ExtractPage(ctx context.Context, doc Document) (models.Fields, error) {
	prompt := fmt.Sprintf(pagePrompt, doc.URL, CleanHTML(doc.Content, m.opts.MaxHTML))
	data, err := m.complete(ctx, "You are a helpful assistant that extracts structured data from HTML.", prompt)
	if err != nil {
		fields := emptyFields(models.PageFieldKeys)
		fields[models.ColCourseType] = models.DefaultCourseType
		return fields, &models.ExtractionError{URL: doc.URL, Source: "html", Cause: err}
	}

	fields := fieldsFrom(data, models.PageFieldKeys)
	if models.IsNotAvailable(fields[models.ColCourseType]) {
		fields[models.ColCourseType] = models.DefaultCourseType
	}
	return fields, nil
}

// ExtractBrochure 从宣传册文本提取字段
func (m *ModelExtractor) ExtractBrochure(ctx context.Context, doc Document) (models.Fields, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return emptyFields(models.BrochureFieldKeys), nil
	}
	prompt := fmt.Sprintf(brochurePrompt, truncate(doc.Content, m.opts.MaxBrochure))
	data, err := m.complete(ctx, "You are a helpful assistant that extracts structured data from text.", prompt)
	if err != nil {
		return emptyFields(models.BrochureFieldKeys), &models.ExtractionError{URL: doc.URL, Source: "pdf", Cause: err}
	}
	return fieldsFrom(data, models.BrochureFieldKeys), nil
}

// complete 发送对话请求并解析JSON对象
func (m *ModelExtractor) complete(ctx context.Context, system, prompt string) (map[string]interface{}, error) {
	req := chatRequest{
		Model: m.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: m.opts.Temperature,
	}

	res, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&chatResponse{}).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("请求模型接口失败: %w", err)
	}
	if res.StatusCode() == http.StatusTooManyRequests {
		return nil, models.ErrRateLimited
	}
	if res.IsError() {
		return nil, fmt.Errorf("模型接口返回错误: HTTP %d", res.StatusCode())
	}

	body, ok := res.Result().(*chatResponse)
	if !ok || len(body.Choices) == 0 {
		return nil, errors.New("模型响应为空")
	}
	utils.Debugf("模型响应 %d 字节", len(res.Body()))
	return ParseModelJSON(body.Choices[0].Message.Content)
}

// ParseModelJSON 去除代码围栏并解析为JSON对象
// 非对象(数组、字符串等)视为失败
func ParseModelJSON(content string) (map[string]interface{}, error) {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("解析模型JSON失败: %w", err)
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("模型返回的不是JSON对象: %T", raw)
	}
	return obj, nil
}

// fieldsFrom 取出指定键并转换为字符串,缺失键为 N/A
func fieldsFrom(data map[string]interface{}, keys []string) models.Fields {
	fields := emptyFields(keys)
	for _, key := range keys {
		if v, ok := data[key]; ok {
			if s := stringify(v); !models.IsNotAvailable(s) {
				fields.Set(key, s)
			}
		}
	}
	return fields
}

// stringify 将任意JSON值转换为字符串,列表以 "; " 连接
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := strings.TrimSpace(stringify(val[k])); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(val)
	}
}
