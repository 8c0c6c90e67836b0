// Package crawlers 提供课程目录发现、页面渲染与宣传册下载功能
//
// # 概述
//
// crawlers包实现了目录站点的广度优先发现机制,支持静态(Colly)和动态(go-rod)两种渲染模式。
// 核心特性包括:受页面预算约束的翻页跟随、详情页链接过滤、表单式宣传册下载。
//
// # 核心组件
//
// ## CatalogCrawler
//
// 从入口目录页开始按FIFO顺序访问目录页,收集符合规则的详情页URL,
// 并通过关键字或数字分页链接寻找下一页。每个URL最多访问一次。
//
//	crawler := NewCatalogCrawler(renderer, NewLinkRules(site.Include, site.Exclude), nil)
//	result, err := crawler.Discover(ctx, site.CatalogURL, 30)
//
// ## Renderer
//
// 页面渲染能力抽象。DynamicRenderer 基于go-rod,执行JavaScript、滚动懒加载
// 并在浏览器崩溃时自动重启;StaticRenderer 基于Colly,支持 gzip/deflate/br 解压。
//
// ## BrochureAcquirer
//
// 宣传册获取状态机:
//
//	Idle → AwaitingModal → FillingForm → AwaitingDownload → Done | TimedOut
//
// 目标文件已存在时直接复用,不会重复下载。任何失败都只返回"未获取"。
//
// ## ResourceMonitor (资源监控器)
//
// 周期采样主机可用内存,在内存不足时通知动态渲染器回收标签页:
//   - 可用内存 < 500MB: warning
//   - 可用内存 < 300MB: critical,回收标签页
//   - 可用内存 < 200MB: emergency,回收标签页
package crawlers
