package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

// chatServer 返回固定内容的对话接口
func chatServer(t *testing.T, status int, content string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
}

func newTestModel(url string) *ModelExtractor {
	m := NewModelExtractor(ModelOptions{BaseURL: url, APIKey: "sk-test", Timeout: 5 * time.Second})
	m.client.SetRetryWaitTime(time.Millisecond)
	m.client.SetRetryMaxWaitTime(5 * time.Millisecond)
	return m
}

func TestModelExtractor_ExtractPage(t *testing.T) {
	t.Run("解析带代码围栏的JSON", func(t *testing.T) {
		content := "```json\n{\"course_name\": \"Bootcamp de Python\", \"price_raw\": \"S/480\", \"duration\": \"N/A\", \"instructor\": [\"Ana\", \"Luis\"]}\n```"
		server := chatServer(t, http.StatusOK, content, nil)
		defer server.Close()

		fields, err := newTestModel(server.URL).ExtractPage(context.Background(), Document{
			URL:     "https://x.example.com/curso/python",
			Content: "<html><script>x()</script><h1>Bootcamp de Python</h1></html>",
		})
		if err != nil {
			t.Fatalf("提取失败: %v", err)
		}
		if got := fields.Get(models.ColCourseName); got != "Bootcamp de Python" {
			t.Errorf("course_name不匹配: got %q", got)
		}
		if got := fields.Get(models.ColPriceRaw); got != "S/480" {
			t.Errorf("price_raw不匹配: got %q", got)
		}
		if got := fields.Get(models.ColInstructor); got != "Ana; Luis" {
			t.Errorf("列表应以'; '连接: got %q", got)
		}
		if got := fields.Get(models.ColDuration); got != models.NotAvailable {
			t.Errorf("duration应为N/A: got %q", got)
		}
		if got := fields.Get(models.ColCourseType); got != models.DefaultCourseType {
			t.Errorf("course_type默认值不匹配: got %q", got)
		}
	})

	t.Run("非对象响应返回提取错误", func(t *testing.T) {
		server := chatServer(t, http.StatusOK, `["a", "b"]`, nil)
		defer server.Close()

		fields, err := newTestModel(server.URL).ExtractPage(context.Background(), Document{URL: "u", Content: "<p>x</p>"})
		var exErr *models.ExtractionError
		if !errors.As(err, &exErr) {
			t.Fatalf("期望ExtractionError, got %v", err)
		}
		if fields.Get(models.ColCourseName) != models.NotAvailable {
			t.Error("失败时字段应为N/A")
		}
	})

	t.Run("限流重试后返回错误", func(t *testing.T) {
		var calls int32
		server := chatServer(t, http.StatusTooManyRequests, "", &calls)
		defer server.Close()

		_, err := newTestModel(server.URL).ExtractPage(context.Background(), Document{URL: "u", Content: "<p>x</p>"})
		if !errors.Is(err, models.ErrRateLimited) {
			t.Errorf("期望ErrRateLimited, got %v", err)
		}
		if got := atomic.LoadInt32(&calls); got != 3 {
			t.Errorf("请求次数不匹配: got %d, want 3", got)
		}
	})
}

func TestModelExtractor_ExtractBrochure(t *testing.T) {
	content := `{"duration": 96, "start_date": "21 Enero", "certification": {"digital": "sí"}, "methodology": "", "instructor": null, "content": "Python; SQL"}`
	server := chatServer(t, http.StatusOK, content, nil)
	defer server.Close()

	fields, err := newTestModel(server.URL).ExtractBrochure(context.Background(), Document{URL: "b.pdf", Content: "texto del brochure"})
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}

	want := map[string]string{
		models.ColDuration:      "96",
		models.ColStartDate:     "21 Enero",
		models.ColCertification: "digital: sí",
		models.ColMethodology:   models.NotAvailable,
		models.ColInstructor:    models.NotAvailable,
		models.ColContent:       "Python; SQL",
	}
	for key, w := range want {
		if got := fields.Get(key); got != w {
			t.Errorf("%s不匹配: got %q, want %q", key, got, w)
		}
	}
}

func TestParseModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"纯JSON", `{"a": "b"}`, false},
		{"围栏", "```json\n{\"a\": \"b\"}\n```", false},
		{"无语言围栏", "```\n{\"a\": 1}\n```", false},
		{"数组", `[1, 2]`, true},
		{"字符串", `"hola"`, true},
		{"非法JSON", `{"a": `, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModelJSON(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("错误不匹配: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("模型类型缺少密钥回退为规则", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		ex, err := New(Config{Kind: KindModel}, nil)
		if err != nil {
			t.Fatalf("创建失败: %v", err)
		}
		if ex.Name() != KindPattern {
			t.Errorf("应回退为pattern: got %s", ex.Name())
		}
	})

	t.Run("环境变量提供密钥", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "sk-env")
		ex, err := New(Config{Kind: KindModel}, nil)
		if err != nil {
			t.Fatalf("创建失败: %v", err)
		}
		if ex.Name() != KindModel {
			t.Errorf("应为model: got %s", ex.Name())
		}
	})

	t.Run("未知类型返回配置错误", func(t *testing.T) {
		_, err := New(Config{Kind: "llm"}, nil)
		if !models.IsConfigError(err) {
			t.Errorf("期望ConfigError, got %v", err)
		}
	})
}

func TestCleanHTML(t *testing.T) {
	raw := `<html><head><style>.a{}</style><script>alert(1)</script></head>
<body><noscript>js</noscript><svg><path/></svg><!-- c --><h1>Curso</h1></body></html>`

	cleaned := CleanHTML(raw, 0)
	for _, bad := range []string{"alert", "<style", "<noscript", "<svg", "<!--"} {
		if strings.Contains(cleaned, bad) {
			t.Errorf("清理后仍包含 %q: %s", bad, cleaned)
		}
	}
	if !strings.Contains(cleaned, "<h1>Curso</h1>") {
		t.Errorf("正文被误删: %s", cleaned)
	}

	long := "<p>" + strings.Repeat("ñ", 100) + "</p>"
	if got := []rune(CleanHTML(long, 20)); len(got) != 20 {
		t.Errorf("截断长度不匹配: got %d, want 20", len(got))
	}
}

func TestBrochurePages(t *testing.T) {
	tests := []struct {
		total int
		want  []int
	}{
		{0, []int{}},
		{3, []int{1, 2, 3}},
		{6, []int{1, 2, 3, 4, 5, 6}},
		{12, []int{1, 2, 3, 4, 5, 10, 11, 12}},
	}
	for _, tt := range tests {
		got := BrochurePages(tt.total)
		if len(got) != len(tt.want) {
			t.Errorf("BrochurePages(%d) = %v, want %v", tt.total, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("BrochurePages(%d) = %v, want %v", tt.total, got, tt.want)
				break
			}
		}
	}
}

func TestReadBrochureText_MissingFile(t *testing.T) {
	if _, err := ReadBrochureText("/nonexistent/brochure.pdf", 0); err == nil {
		t.Error("不存在的文件应返回错误")
	}
}
