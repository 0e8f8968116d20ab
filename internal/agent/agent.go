package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/events"
	"OpenMCP-Arbitrum/internal/journal"
	"OpenMCP-Arbitrum/internal/llm"
	"OpenMCP-Arbitrum/internal/observability/alerting"
	"OpenMCP-Arbitrum/internal/observability/metrics"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"
)

// Request 描述一次动作调用。
type Request struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	// Text 是用户原始消息，Params 为空时用于参数抽取。
	Text   string          `json:"text,omitempty"`
	Source string          `json:"source,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	// RecentMessages 是对话上下文，按时间顺序排列。
	RecentMessages []string `json:"recentMessages,omitempty"`
}

// Result 汇总动作回调给用户的内容。
type Result struct {
	ID      string         `json:"id"`
	Action  string         `json:"action"`
	Status  journal.Status `json:"status"`
	Code    string         `json:"code,omitempty"`
	Text    string         `json:"text"`
	Content any            `json:"content,omitempty"`
}

// Extractor 把渲染后的模板交给大模型并返回 JSON 参数。
type Extractor interface {
	Extract(ctx context.Context, req llm.Request) (json.RawMessage, error)
}

// Runtime 协调插件动作、参数抽取与结果记录，是系统的业务核心。
type Runtime struct {
	manager        *plugin.Manager
	settings       plugin.Settings
	extractor      Extractor
	journal        journal.Store
	publisher      events.Publisher
	alerts         alerting.Dispatcher
	extractTimeout time.Duration
	log            *slog.Logger
}

// Option 定义可选的 Runtime 配置。
type Option func(*Runtime)

// WithExtractor 配置参数抽取器。
func WithExtractor(e Extractor) Option {
	return func(r *Runtime) {
		r.extractor = e
	}
}

// WithJournal 配置调用记录存储。
func WithJournal(store journal.Store) Option {
	return func(r *Runtime) {
		if store != nil {
			r.journal = store
		}
	}
}

// WithPublisher 配置事件发布器。
func WithPublisher(p events.Publisher) Option {
	return func(r *Runtime) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithAlerts 配置告警分发器。
func WithAlerts(d alerting.Dispatcher) Option {
	return func(r *Runtime) {
		r.alerts = d
	}
}

// WithExtractTimeout 设置调用大模型的超时时间。
func WithExtractTimeout(timeout time.Duration) Option {
	return func(r *Runtime) {
		if timeout < 0 {
			timeout = 0
		}
		r.extractTimeout = timeout
	}
}

// New 创建 Runtime。未配置的存储与发布器使用内存实现与空实现。
func New(manager *plugin.Manager, settings plugin.Settings, opts ...Option) *Runtime {
	rt := &Runtime{
		manager:   manager,
		settings:  settings,
		publisher: events.Nop{},
		log:       logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}
	if rt.journal == nil {
		// 内存实现不落盘，不会返回错误。
		rt.journal, _ = journal.NewMemoryStore("")
	}
	return rt
}

// Execute 解析动作、准备参数并执行，无论成功与否都会写入调用记录。
// 返回的 Result 总是非空，error 为动作本身的失败原因。
func (r *Runtime) Execute(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	entry := journal.NewEntry(strings.TrimSpace(req.Action))
	if req.ID != "" {
		entry.ID = req.ID
	}
	entry.Source = req.Source
	entry.Message = req.Text

	var captured *plugin.Result
	err := r.run(ctx, req, &entry, func(res plugin.Result) {
		captured = &res
	})

	result := &Result{ID: entry.ID, Action: entry.Action, Status: journal.StatusSucceeded}
	if captured != nil {
		result.Text = captured.Text
		result.Content = captured.Content
	}
	if err != nil {
		result.Status = journal.StatusFailed
		result.Code = string(xerrors.CodeOf(err))
		if result.Text == "" {
			result.Text = xerrors.UserMessage(err)
		}
	}

	r.record(ctx, &entry, result, err, time.Since(started))
	return result, err
}

func (r *Runtime) run(ctx context.Context, req Request, entry *journal.Entry, cb plugin.Callback) error {
	if r.manager == nil {
		return xerrors.New(xerrors.CodeInitializationFail, "未配置插件管理器")
	}
	if entry.Action == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "动作名称不能为空")
	}
	action, ok := r.manager.Action(entry.Action)
	if !ok {
		return xerrors.Newf(xerrors.CodeNotFound, "未找到动作 %s", entry.Action)
	}
	entry.Action = action.Name

	if action.Validate != nil && !action.Validate(r.settings) {
		return xerrors.Newf(xerrors.CodeMissingPrivateKey, "动作 %s 校验未通过", action.Name)
	}

	state := map[string]string{}
	params := req.Params
	if len(params) == 0 && strings.TrimSpace(req.Text) != "" {
		state = r.composeState(ctx, req)
		extracted, err := r.extract(ctx, action, state)
		if err != nil {
			return err
		}
		params = extracted
	}
	entry.Params = params

	return action.Handler(ctx, plugin.Invocation{
		Message: plugin.Message{ID: entry.ID, Source: req.Source, Text: req.Text},
		Params:  params,
		State:   state,
	}, cb)
}

// composeState 组装模板所需的 recentMessages 与 walletInfo。
func (r *Runtime) composeState(ctx context.Context, req Request) map[string]string {
	messages := append(append([]string(nil), req.RecentMessages...), req.Text)
	return map[string]string{
		"recentMessages": strings.Join(messages, "\n"),
		"walletInfo":     r.ProviderContext(ctx, plugin.Message{Source: req.Source, Text: req.Text}),
	}
}

// ProviderContext 拼接所有 Provider 的上下文文本，失败的 Provider 被跳过。
func (r *Runtime) ProviderContext(ctx context.Context, msg plugin.Message) string {
	if r.manager == nil {
		return ""
	}
	var parts []string
	for _, provider := range r.manager.Providers() {
		text, err := provider.Get(ctx, msg)
		if err != nil {
			r.log.Warn("provider 获取上下文失败", slog.String("provider", provider.Name()), slog.Any("error", err))
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (r *Runtime) extract(ctx context.Context, action plugin.Action, state map[string]string) (json.RawMessage, error) {
	if r.extractor == nil {
		return nil, xerrors.New(xerrors.CodeExtractionFailed, "未配置大模型，无法从文本中抽取参数")
	}
	if action.Template == "" {
		return nil, xerrors.Newf(xerrors.CodeExtractionFailed, "动作 %s 没有参数模板", action.Name)
	}

	extractCtx := ctx
	if r.extractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, r.extractTimeout)
		defer cancel()
	}
	raw, err := r.extractor.Extract(extractCtx, llm.Request{
		Prompt: plugin.RenderTemplate(action.Template, state),
		Action: action.Name,
	})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeExtractionFailed, err, "大模型推理超时")
		}
		return nil, err
	}
	r.log.Debug("参数抽取完成", slog.String("action", action.Name), slog.String("params", string(raw)))
	return raw, nil
}

// record 写入调用记录、发布事件、更新指标，并在严重错误时告警。
func (r *Runtime) record(ctx context.Context, entry *journal.Entry, result *Result, err error, elapsed time.Duration) {
	entry.Status = result.Status
	entry.Code = result.Code
	entry.Text = result.Text
	entry.DurationMS = elapsed.Milliseconds()
	if result.Content != nil {
		if encoded, marshalErr := json.Marshal(result.Content); marshalErr == nil {
			entry.Content = encoded
			var summary struct {
				Chain  string `json:"chain"`
				TxHash string `json:"txHash"`
			}
			if json.Unmarshal(encoded, &summary) == nil {
				entry.Chain = summary.Chain
				entry.TxHash = summary.TxHash
			}
		}
	}

	metrics.ObserveAction(entry.Action, string(entry.Status), entry.Code, elapsed)

	if saveErr := r.journal.Save(ctx, *entry); saveErr != nil {
		r.log.Error("写入调用记录失败", slog.String("id", entry.ID), slog.Any("error", saveErr))
	}
	if pubErr := r.publisher.Publish(ctx, *entry); pubErr != nil {
		r.log.Warn("发布调用事件失败", slog.String("id", entry.ID), slog.Any("error", pubErr))
	}

	if err != nil {
		r.log.Warn("动作执行失败", slog.String("action", entry.Action), slog.String("code", entry.Code), slog.String("error", xerrors.UserMessage(err)))
	} else {
		r.log.Info("动作执行成功", slog.String("action", entry.Action), slog.String("id", entry.ID))
	}

	if r.alerts != nil && alerting.ShouldAlert(err) {
		alertErr := r.alerts.Notify(ctx, alerting.Event{
			Code:       xerrors.CodeOf(err),
			Message:    xerrors.UserMessage(err),
			Severity:   xerrors.SeverityOf(err),
			Action:     entry.Action,
			EntryID:    entry.ID,
			Chain:      entry.Chain,
			TxHash:     entry.TxHash,
			OccurredAt: time.Now(),
		})
		if alertErr != nil {
			r.log.Warn("告警发送失败", slog.Any("error", alertErr))
		}
	}
}

// Journal 返回最近的调用记录。
func (r *Runtime) Journal(ctx context.Context, limit int) ([]journal.Entry, error) {
	entries, err := r.journal.ListLatest(ctx, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取调用记录失败")
	}
	return entries, nil
}

// ActionInfo 是对外展示的动作描述。
type ActionInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Similes     []string           `json:"similes,omitempty"`
	Examples    [][]plugin.Example `json:"examples,omitempty"`
	Enabled     bool               `json:"enabled"`
}

// Actions 列出所有已注册的动作及其在当前配置下是否可用。
func (r *Runtime) Actions() []ActionInfo {
	if r.manager == nil {
		return nil
	}
	actions := r.manager.Actions()
	out := make([]ActionInfo, 0, len(actions))
	for _, a := range actions {
		out = append(out, ActionInfo{
			Name:        a.Name,
			Description: a.Description,
			Similes:     a.Similes,
			Examples:    a.Examples,
			Enabled:     a.Validate == nil || a.Validate(r.settings),
		})
	}
	return out
}

// Close 释放存储与发布器。
func (r *Runtime) Close() error {
	return stdErrors.Join(r.journal.Close(), r.publisher.Close())
}
