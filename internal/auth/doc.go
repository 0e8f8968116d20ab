// Package auth 为 HTTP API 提供基于静态 Bearer Token 的认证与按方法授权。
package auth
