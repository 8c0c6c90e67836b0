package crawlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
)

// DefaultBrochureKeywords 宣传册触发元素关键字,按优先级排列
var DefaultBrochureKeywords = []string{
	"brochure", "descargar", "plan de estudios", "temario",
	"syllabus", "download", "pdf", "malla",
}

// BrochureState 宣传册获取状态
type BrochureState int

const (
	StateIdle BrochureState = iota
	StateAwaitingModal
	StateFillingForm
	StateAwaitingDownload
	StateDone
	StateTimedOut
)

func (s BrochureState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingModal:
		return "AwaitingModal"
	case StateFillingForm:
		return "FillingForm"
	case StateAwaitingDownload:
		return "AwaitingDownload"
	case StateDone:
		return "Done"
	case StateTimedOut:
		return "TimedOut"
	}
	return fmt.Sprintf("BrochureState(%d)", int(s))
}

// FormIdentity 表单占位身份,固定的测试数据
type FormIdentity struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// BrochureSession 页面与触发元素上的交互操作
type BrochureSession interface {
	// ArmDownload 在点击前注册下载监听,返回的函数阻塞至下载完成并返回临时文件路径
	ArmDownload(ctx context.Context, dir string) func() (string, error)
	ClickTrigger(ctx context.Context) error
	FormVisible(ctx context.Context) (bool, error)
	// FillForm 填写第一个可见文本框与邮箱框,勾选可见复选框
	FillForm(ctx context.Context, identity FormIdentity) error
	// Submit 点击第一个可见提交按钮,不存在时不报错
	Submit(ctx context.Context) error
}

// BrochureConfig 宣传册配置
type BrochureConfig struct {
	Enabled        bool         `mapstructure:"enabled" yaml:"enabled"`
	ModalBudgetMs  int          `mapstructure:"modal_budget_ms" yaml:"modal_budget_ms"`
	FormBudgetMs   int          `mapstructure:"form_budget_ms" yaml:"form_budget_ms"`
	DownloadBudget int          `mapstructure:"download_budget" yaml:"download_budget"` // 秒
	PollIntervalMs int          `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	Keywords       []string     `mapstructure:"keywords" yaml:"keywords"`
	Identity       FormIdentity `mapstructure:"identity" yaml:"identity"`
}

// BrochureBudgets 各状态的等待预算
type BrochureBudgets struct {
	Modal    time.Duration
	Form     time.Duration
	Download time.Duration
	Poll     time.Duration
}

// Budgets 从配置计算等待预算
func (c BrochureConfig) Budgets() BrochureBudgets {
	b := BrochureBudgets{
		Modal:    time.Duration(c.ModalBudgetMs) * time.Millisecond,
		Form:     time.Duration(c.FormBudgetMs) * time.Millisecond,
		Download: time.Duration(c.DownloadBudget) * time.Second,
		Poll:     time.Duration(c.PollIntervalMs) * time.Millisecond,
	}
	if b.Poll <= 0 {
		b.Poll = 250 * time.Millisecond
	}
	return b
}

// TriggerKeywords 返回触发关键字
func (c BrochureConfig) TriggerKeywords() []string {
	if len(c.Keywords) > 0 {
		return c.Keywords
	}
	return DefaultBrochureKeywords
}

// AcquireResult 获取结果
type AcquireResult struct {
	Path   string
	State  BrochureState
	Reused bool
	Err    error
}

// OK 是否成功获取
func (r AcquireResult) OK() bool {
	return r.State == StateDone && r.Path != ""
}

// discardGrace 撤销监听后等待迟到下载的时长
const discardGrace = 2 * time.Second

// BrochureAcquirer 宣传册获取器
// 状态机: Idle → AwaitingModal → FillingForm → AwaitingDownload → Done|TimedOut
// 任何失败都降级为"未获取",不会中断详情页处理
type BrochureAcquirer struct {
	dir      string
	identity FormIdentity
	budgets  BrochureBudgets
}

// NewBrochureAcquirer 创建获取器,文件保存在 dir 下
func NewBrochureAcquirer(dir string, identity FormIdentity, budgets BrochureBudgets) *BrochureAcquirer {
	if budgets.Poll <= 0 {
		budgets.Poll = 250 * time.Millisecond
	}
	return &BrochureAcquirer{dir: dir, identity: identity, budgets: budgets}
}

// TargetPath 课程宣传册的目标路径
func (a *BrochureAcquirer) TargetPath(courseName string) string {
	return filepath.Join(a.dir, models.BrochureFilename(courseName))
}

// Acquire 获取宣传册,返回本地路径
func (a *BrochureAcquirer) Acquire(ctx context.Context, session BrochureSession, courseName string) (string, bool) {
	res := a.AcquireDetailed(ctx, session, courseName)
	if res.Err != nil {
		utils.Debugf("宣传册未获取 [%s] 状态=%s: %v", courseName, res.State, res.Err)
	}
	return res.Path, res.OK()
}

// AcquireDetailed 获取宣传册并返回最终状态
func (a *BrochureAcquirer) AcquireDetailed(ctx context.Context, session BrochureSession, courseName string) (res AcquireResult) {
	target := a.TargetPath(courseName)
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		utils.Debugf("宣传册已存在,跳过下载: %s", target)
		return AcquireResult{Path: target, State: StateDone, Reused: true}
	}

	state := StateIdle
	defer func() {
		if r := recover(); r != nil {
			res = AcquireResult{State: StateTimedOut, Err: fmt.Errorf("%w: 状态 %s 发生panic: %v", models.ErrDownload, state, r)}
		}
	}()

	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return a.fail(state, err)
	}

	armCtx, cancelArm := context.WithCancel(ctx)
	defer cancelArm()

	var waitDownload func() (string, error)

	for {
		switch state {
		case StateIdle:
			waitDownload = session.ArmDownload(armCtx, a.dir)
			if err := session.ClickTrigger(ctx); err != nil {
				return a.fail(state, err)
			}
			state = StateAwaitingModal

		case StateAwaitingModal:
			visible, err := a.awaitModal(ctx, session)
			if err != nil {
				return a.fail(state, err)
			}
			if visible {
				state = StateFillingForm
			} else {
				state = StateAwaitingDownload
			}

		case StateFillingForm:
			formCtx, cancel := context.WithTimeout(ctx, a.budgets.Form)
			err := session.FillForm(formCtx, a.identity)
			if err == nil {
				err = session.Submit(formCtx)
			}
			cancel()
			if err != nil {
				return a.fail(state, err)
			}
			state = StateAwaitingDownload

		case StateAwaitingDownload:
			tmpPath, err := a.awaitDownload(ctx, waitDownload, cancelArm)
			if err != nil {
				return AcquireResult{State: StateTimedOut, Err: fmt.Errorf("%w: %w", models.ErrDownload, err)}
			}
			if err := os.Rename(tmpPath, target); err != nil {
				return a.fail(state, err)
			}
			utils.Infof("📥 宣传册已下载: %s", target)
			return AcquireResult{Path: target, State: StateDone}

		default:
			return a.fail(state, errors.New("未知状态"))
		}
	}
}

// awaitModal 在预算内轮询表单是否可见
func (a *BrochureAcquirer) awaitModal(ctx context.Context, session BrochureSession) (bool, error) {
	deadline := time.Now().Add(a.budgets.Modal)
	for {
		visible, err := session.FormVisible(ctx)
		if err == nil && visible {
			return true, nil
		}
		if time.Now().Add(a.budgets.Poll).After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(a.budgets.Poll):
		}
	}
}

// awaitDownload 在预算内等待下载完成
// 超时或取消后撤销监听,迟到的下载文件会被删除
func (a *BrochureAcquirer) awaitDownload(ctx context.Context, wait func() (string, error), disarm context.CancelFunc) (string, error) {
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		path, err := wait()
		done <- result{path: path, err: err}
	}()

	timer := time.NewTimer(a.budgets.Download)
	defer timer.Stop()

	var err error
	select {
	case r := <-done:
		return r.path, r.err
	case <-timer.C:
		err = models.ErrDownloadTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	disarm()
	discard := func(r result) {
		if r.err == nil && r.path != "" {
			if rmErr := os.Remove(r.path); rmErr == nil {
				utils.Debugf("🗑️  删除迟到的下载文件: %s", r.path)
			}
		}
	}
	select {
	case r := <-done:
		discard(r)
	case <-time.After(discardGrace):
		go func() { discard(<-done) }()
	}
	return "", err
}

func (a *BrochureAcquirer) fail(state BrochureState, err error) AcquireResult {
	return AcquireResult{
		State: StateTimedOut,
		Err:   fmt.Errorf("%w: 状态 %s: %v", models.ErrDownload, state, err),
	}
}
