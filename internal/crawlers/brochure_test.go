package crawlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

// fakeSession 模拟宣传册交互
type fakeSession struct {
	formVisible bool
	download    bool // 是否产生下载
	late        bool // 监听撤销后才落盘
	clickErr    error

	clicks    int
	filled    []FormIdentity
	submitted int
}

func (s *fakeSession) ArmDownload(ctx context.Context, dir string) func() (string, error) {
	return func() (string, error) {
		if !s.download {
			<-ctx.Done()
			if !s.late {
				return "", ctx.Err()
			}
		}
		path := filepath.Join(dir, "9f3c-guid")
		if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
			return "", err
		}
		return path, nil
	}
}

func (s *fakeSession) ClickTrigger(ctx context.Context) error {
	s.clicks++
	return s.clickErr
}

func (s *fakeSession) FormVisible(ctx context.Context) (bool, error) {
	return s.formVisible, nil
}

func (s *fakeSession) FillForm(ctx context.Context, identity FormIdentity) error {
	s.filled = append(s.filled, identity)
	return nil
}

func (s *fakeSession) Submit(ctx context.Context) error {
	s.submitted++
	return nil
}

func testBudgets() BrochureBudgets {
	return BrochureBudgets{
		Modal:    50 * time.Millisecond,
		Form:     time.Second,
		Download: 100 * time.Millisecond,
		Poll:     10 * time.Millisecond,
	}
}

var testIdentity = FormIdentity{Name: "Juan Perez", Email: "test@example.com"}

func TestBrochureAcquirer_Acquire(t *testing.T) {
	t.Run("表单流程下载成功", func(t *testing.T) {
		dir := t.TempDir()
		session := &fakeSession{formVisible: true, download: true}
		acq := NewBrochureAcquirer(dir, testIdentity, testBudgets())

		res := acq.AcquireDetailed(context.Background(), session, "Diplomado en Data Science!")
		if !res.OK() {
			t.Fatalf("获取失败: 状态=%s, err=%v", res.State, res.Err)
		}
		want := filepath.Join(dir, "Diplomado_en_Data_Science.pdf")
		if res.Path != want {
			t.Errorf("路径不匹配: got %s, want %s", res.Path, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("文件应存在: %v", err)
		}
		if len(session.filled) != 1 || session.filled[0] != testIdentity {
			t.Errorf("表单填写不正确: %+v", session.filled)
		}
		if session.submitted != 1 {
			t.Errorf("提交次数不匹配: got %d, want 1", session.submitted)
		}
	})

	t.Run("无表单直接下载", func(t *testing.T) {
		dir := t.TempDir()
		session := &fakeSession{formVisible: false, download: true}
		acq := NewBrochureAcquirer(dir, testIdentity, testBudgets())

		path, ok := acq.Acquire(context.Background(), session, "Curso SQL")
		if !ok || path == "" {
			t.Fatal("应成功获取宣传册")
		}
		if len(session.filled) != 0 {
			t.Error("没有表单时不应填写")
		}
	})

	t.Run("已存在的文件直接复用", func(t *testing.T) {
		dir := t.TempDir()
		existing := filepath.Join(dir, "Curso_SQL.pdf")
		if err := os.WriteFile(existing, []byte("%PDF"), 0644); err != nil {
			t.Fatal(err)
		}
		session := &fakeSession{download: true}
		acq := NewBrochureAcquirer(dir, testIdentity, testBudgets())

		res := acq.AcquireDetailed(context.Background(), session, "Curso SQL")
		if !res.OK() || !res.Reused {
			t.Errorf("应复用已有文件: %+v", res)
		}
		if res.Path != existing {
			t.Errorf("路径不匹配: got %s, want %s", res.Path, existing)
		}
		if session.clicks != 0 {
			t.Errorf("复用时不应点击: got %d", session.clicks)
		}
	})

	t.Run("下载超时", func(t *testing.T) {
		dir := t.TempDir()
		session := &fakeSession{formVisible: true, download: false}
		acq := NewBrochureAcquirer(dir, testIdentity, testBudgets())

		res := acq.AcquireDetailed(context.Background(), session, "Curso Lento")
		if res.OK() {
			t.Fatal("超时不应成功")
		}
		if res.State != StateTimedOut {
			t.Errorf("状态不匹配: got %s, want TimedOut", res.State)
		}
		if !errors.Is(res.Err, models.ErrDownload) {
			t.Errorf("错误应包装ErrDownload: %v", res.Err)
		}
		if _, err := os.Stat(acq.TargetPath("Curso Lento")); err == nil {
			t.Error("超时不应产生文件")
		}
	})

	t.Run("超时后迟到的下载被删除", func(t *testing.T) {
		dir := t.TempDir()
		session := &fakeSession{formVisible: false, late: true}
		acq := NewBrochureAcquirer(dir, testIdentity, testBudgets())

		res := acq.AcquireDetailed(context.Background(), session, "Curso Tardio")
		if res.OK() || !errors.Is(res.Err, models.ErrDownloadTimeout) {
			t.Fatalf("应超时: %+v", res)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("下载目录应为空, 实际有 %d 个文件: %s", len(entries), entries[0].Name())
		}
	})

	t.Run("点击失败返回未获取", func(t *testing.T) {
		session := &fakeSession{clickErr: errors.New("element detached")}
		acq := NewBrochureAcquirer(t.TempDir(), testIdentity, testBudgets())

		path, ok := acq.Acquire(context.Background(), session, "Curso")
		if ok || path != "" {
			t.Errorf("点击失败应返回未获取: %s %v", path, ok)
		}
	})
}

func TestBrochureState_String(t *testing.T) {
	states := map[BrochureState]string{
		StateIdle:             "Idle",
		StateAwaitingModal:    "AwaitingModal",
		StateFillingForm:      "FillingForm",
		StateAwaitingDownload: "AwaitingDownload",
		StateDone:             "Done",
		StateTimedOut:         "TimedOut",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("String()不匹配: got %s, want %s", got, want)
		}
	}
}

func TestBrochureConfig_Budgets(t *testing.T) {
	cfg := BrochureConfig{ModalBudgetMs: 3000, FormBudgetMs: 10000, DownloadBudget: 15}
	b := cfg.Budgets()
	if b.Modal != 3*time.Second || b.Form != 10*time.Second || b.Download != 15*time.Second {
		t.Errorf("预算不匹配: %+v", b)
	}
	if b.Poll != 250*time.Millisecond {
		t.Errorf("默认轮询间隔不匹配: got %v", b.Poll)
	}
	if len(cfg.TriggerKeywords()) == 0 || cfg.TriggerKeywords()[0] != "brochure" {
		t.Errorf("默认关键字不匹配: %v", cfg.TriggerKeywords())
	}
}
