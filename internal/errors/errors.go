package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

// Category 对错误码进行归类，便于调用方区分配置、输入与外部调用问题。
type Category string

// Severity 描述错误的严重程度，用于日志与审计。
type Severity string

const (
	CategoryConfiguration Category = "configuration"
	CategoryInput         Category = "input"
	CategoryResolution    Category = "resolution"
	CategoryExternal      Category = "external"
	CategoryVerification  Category = "verification"
	CategoryInternal      Category = "internal"
)

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message  string
	Category Category
	Severity Severity
}

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeUnsupportedChain   Code = "UNSUPPORTED_CHAIN"
	CodeMissingPrivateKey  Code = "MISSING_PRIVATE_KEY"
	CodeInvalidPrivateKey  Code = "INVALID_PRIVATE_KEY"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeIneligibleChain    Code = "INELIGIBLE_CHAIN"
	CodeInvalidAddress     Code = "INVALID_ADDRESS"
	CodeTokenNotFound      Code = "TOKEN_NOT_FOUND"
	CodeRPCFailure         Code = "RPC_FAILURE"
	CodeNoRoute            Code = "NO_ROUTE"
	CodeSwapFailed         Code = "SWAP_FAILED"
	CodeCompilationFailed  Code = "COMPILATION_FAILED"
	CodeEmptyBytecode      Code = "EMPTY_BYTECODE"
	CodeMissingTxHash      Code = "MISSING_TX_HASH"
	CodeTxReverted         Code = "TX_REVERTED"
	CodeExtractionFailed   Code = "EXTRACTION_FAILED"
	CodeStorageFailure     Code = "STORAGE_FAILURE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInitializationFail Code = "INITIALIZATION_FAILURE"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:            {Message: "unknown error", Category: CategoryInternal, Severity: SeverityCritical},
		CodeUnsupportedChain:   {Message: "unsupported chain", Category: CategoryConfiguration, Severity: SeverityWarning},
		CodeMissingPrivateKey:  {Message: "private key is not configured", Category: CategoryConfiguration, Severity: SeverityCritical},
		CodeInvalidPrivateKey:  {Message: "invalid private key", Category: CategoryConfiguration, Severity: SeverityCritical},
		CodeInvalidArgument:    {Message: "invalid argument", Category: CategoryInput, Severity: SeverityInfo},
		CodeIneligibleChain:    {Message: "chain is not eligible for this action", Category: CategoryInput, Severity: SeverityInfo},
		CodeInvalidAddress:     {Message: "Invalid address", Category: CategoryResolution, Severity: SeverityInfo},
		CodeTokenNotFound:      {Message: "token not found", Category: CategoryResolution, Severity: SeverityInfo},
		CodeRPCFailure:         {Message: "rpc call failed", Category: CategoryExternal, Severity: SeverityWarning},
		CodeNoRoute:            {Message: "No routes found", Category: CategoryExternal, Severity: SeverityInfo},
		CodeSwapFailed:         {Message: "Transaction failed", Category: CategoryExternal, Severity: SeverityWarning},
		CodeCompilationFailed:  {Message: "compilation failed", Category: CategoryExternal, Severity: SeverityWarning},
		CodeEmptyBytecode:      {Message: "Bytecode is empty after compilation", Category: CategoryExternal, Severity: SeverityWarning},
		CodeMissingTxHash:      {Message: "Get transaction hash failed", Category: CategoryVerification, Severity: SeverityCritical},
		CodeTxReverted:         {Message: "transaction reverted", Category: CategoryVerification, Severity: SeverityWarning},
		CodeExtractionFailed:   {Message: "parameter extraction failed", Category: CategoryExternal, Severity: SeverityWarning},
		CodeStorageFailure:     {Message: "storage failure", Category: CategoryInternal, Severity: SeverityCritical},
		CodeNotFound:           {Message: "resource not found", Category: CategoryInput, Severity: SeverityInfo},
		CodeInitializationFail: {Message: "service not initialized", Category: CategoryConfiguration, Severity: SeverityWarning},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
	severity *Severity
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New 创建一个新的错误实例，message 为空时使用错误码的默认描述。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Newf 使用格式化字符串创建错误。
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 在已有错误外包裹统一错误类型。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap 实现 errors.Unwrap。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 允许通过 errors.Is 判断是否相同错误码。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回错误信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Category 返回错误所属类别。
func (e *Error) Category() Category {
	if e == nil {
		return CategoryInternal
	}
	return AttributesOf(e.code).Category
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// From 尝试从 error 中解析统一错误类型。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误对应的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// CategoryOf 返回错误所属类别。
func CategoryOf(err error) Category {
	if e, ok := From(err); ok {
		return e.Category()
	}
	return CategoryInternal
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

// UserMessage 返回适合展示给最终用户的错误描述，不包含错误码前缀。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := From(err)
	if !ok {
		return err.Error()
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, UserMessage(e.cause))
	}
	return e.message
}
