package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	loggerpkg "OpenMCP-Arbitrum/pkg/logger"
)

type credential struct {
	digest  [sha256.Size]byte
	subject *Subject
}

// Service 校验静态 Bearer Token 并解析调用方身份。
type Service struct {
	credentials []credential
	audit       *slog.Logger
}

// NewService 根据配置构建认证服务。未配置任何 Token 时认证处于关闭状态。
func NewService(cfg Config) (*Service, error) {
	svc := &Service{audit: loggerpkg.Audit()}
	seen := make(map[string]struct{}, len(cfg.Tokens))
	for i, tc := range cfg.Tokens {
		token := strings.TrimSpace(tc.Token)
		if token == "" {
			return nil, fmt.Errorf("auth: token %d is empty", i)
		}
		if _, dup := seen[token]; dup {
			return nil, fmt.Errorf("auth: token %d is duplicated", i)
		}
		seen[token] = struct{}{}
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			name = fmt.Sprintf("token-%d", i)
		}
		perms := tc.Permissions
		if len(perms) == 0 {
			perms = AllPermissions
		}
		subject := &Subject{Name: name, Permissions: append([]string(nil), perms...)}
		subject.normalise()
		svc.credentials = append(svc.credentials, credential{digest: sha256.Sum256([]byte(token)), subject: subject})
	}
	return svc, nil
}

// Enabled 表示是否需要校验请求。
func (s *Service) Enabled() bool {
	return s != nil && len(s.credentials) > 0
}

// AuthenticateRequest 解析 Authorization 头并返回匹配的主体。
func (s *Service) AuthenticateRequest(authorization string) (*Subject, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(authorization, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	digest := sha256.Sum256([]byte(strings.TrimSpace(token)))
	var matched *Subject
	// 逐个比较所有凭据，耗时与命中位置无关。
	for _, cred := range s.credentials {
		if subtle.ConstantTimeCompare(cred.digest[:], digest[:]) == 1 {
			matched = cred.subject
		}
	}
	if matched == nil {
		return nil, ErrInvalidToken
	}
	return matched, nil
}
