package crawlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// brochureTriggerSelector 被标记的触发元素
const brochureTriggerSelector = "[data-cc-brochure]"

// markBrochureTriggerJS 按关键字顺序标记第一个可见的触发元素
const markBrochureTriggerJS = `(keywords) => {
	document.querySelectorAll("[data-cc-brochure]").forEach(el => el.removeAttribute("data-cc-brochure"));
	const visible = el => {
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none";
	};
	const candidates = Array.from(document.querySelectorAll("a, button"));
	for (const kw of keywords) {
		const needle = kw.toLowerCase();
		for (const el of candidates) {
			const text = (el.innerText || el.textContent || "").toLowerCase();
			if (text.includes(needle) && visible(el)) {
				el.setAttribute("data-cc-brochure", "1");
				return true;
			}
		}
	}
	return false;
}`

// formVisibleJS 页面上是否存在可见的文本或邮箱输入框
const formVisibleJS = `() => {
	return Array.from(document.querySelectorAll("input[type='text'], input[type='email']")).some(el => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0 && window.getComputedStyle(el).visibility !== "hidden";
	});
}`

// rodBrochureSession 基于Rod页面与触发元素的宣传册会话
type rodBrochureSession struct {
	browser *rod.Browser
	page    *rod.Page
	trigger *rod.Element
}

// ArmDownload 注册下载监听,下载文件以GUID命名保存在 dir 中
func (s *rodBrochureSession) ArmDownload(ctx context.Context, dir string) func() (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	wait := s.browser.Context(ctx).WaitDownload(absDir)
	return func() (path string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("等待下载panic: %v", r)
			}
		}()
		info := wait()
		// 监听上下文可能已取消,用浏览器自身的上下文恢复默认下载行为
		_ = proto.BrowserSetDownloadBehavior{
			Behavior: proto.BrowserSetDownloadBehaviorBehaviorDefault,
		}.Call(s.browser)
		if info == nil || info.GUID == "" {
			return "", fmt.Errorf("下载未开始")
		}
		utils.Debugf("下载完成: %s (%s)", info.SuggestedFilename, info.GUID)
		return filepath.Join(absDir, info.GUID), nil
	}
}

func (s *rodBrochureSession) ClickTrigger(ctx context.Context) error {
	if err := s.trigger.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击触发元素失败: %w", err)
	}
	return nil
}

func (s *rodBrochureSession) FormVisible(ctx context.Context) (bool, error) {
	res, err := s.page.Context(ctx).Evaluate(rod.Eval(formVisibleJS))
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (s *rodBrochureSession) FillForm(ctx context.Context, identity FormIdentity) error {
	page := s.page.Context(ctx)

	if err := fillFirstVisible(page, "input[type='text']", identity.Name); err != nil {
		return fmt.Errorf("填写姓名失败: %w", err)
	}
	if err := fillFirstVisible(page, "input[type='email']", identity.Email); err != nil {
		return fmt.Errorf("填写邮箱失败: %w", err)
	}

	boxes, err := page.Elements("input[type='checkbox']")
	if err != nil {
		return fmt.Errorf("查找复选框失败: %w", err)
	}
	for _, box := range boxes {
		if visible, _ := box.Visible(); !visible {
			continue
		}
		checked, err := box.Property("checked")
		if err == nil && checked.Bool() {
			continue
		}
		if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
			utils.Debugf("勾选复选框失败: %v", err)
		}
	}
	return nil
}

func (s *rodBrochureSession) Submit(ctx context.Context) error {
	buttons, err := s.page.Context(ctx).Elements("button[type='submit'], input[type='submit']")
	if err != nil {
		return fmt.Errorf("查找提交按钮失败: %w", err)
	}
	for _, btn := range buttons {
		if visible, _ := btn.Visible(); !visible {
			continue
		}
		if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("点击提交按钮失败: %w", err)
		}
		return nil
	}
	utils.Debugf("未找到可见的提交按钮")
	return nil
}

// fillFirstVisible 填写第一个可见的匹配输入框,不存在时跳过
func fillFirstVisible(page *rod.Page, selector, value string) error {
	inputs, err := page.Elements(selector)
	if err != nil {
		return err
	}
	for _, input := range inputs {
		if visible, _ := input.Visible(); !visible {
			continue
		}
		if err := input.SelectAllText(); err != nil {
			utils.Debugf("选中输入框文本失败: %v", err)
		}
		return input.Input(value)
	}
	return nil
}
